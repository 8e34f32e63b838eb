package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flight505/Readable/internal/synth"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voices for the configured engine",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		engine, err := synth.Select(ctx, &appConfig)
		if err != nil {
			return err
		}

		voices, err := engine.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}

		fmt.Printf("Voices for the %s engine:\n\n", keyword(engine.Name()))
		for _, v := range voices {
			marker := "  "
			if v.ID == appConfig.Voice {
				marker = keyword("* ")
			}
			fmt.Printf("%s%-14s %-14s %-8s %s\n", marker, v.ID, v.Name, v.Language, v.Gender)
		}
		return nil
	},
}
