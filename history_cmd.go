package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flight505/Readable/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent reading sessions",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := openHistory()
		if err != nil {
			return fmt.Errorf("unable to open history: %w", err)
		}

		sessions := store.Recent(10)
		if len(sessions) == 0 {
			fmt.Println("No reading history yet.")
			return nil
		}

		printSessions(sessions)
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Fuzzy-search past sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return fmt.Errorf("unable to open history: %w", err)
		}

		matches := store.Search(args[0])
		if len(matches) == 0 {
			fmt.Printf("No sessions match %q.\n", args[0])
			return nil
		}

		printSessions(matches)
		return nil
	},
}

var historyReplayCmd = &cobra.Command{
	Use:   "replay N",
	Short: "Replay a past session (1 is the most recent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid session number %q", args[0])
		}

		store, err := openHistory()
		if err != nil {
			return fmt.Errorf("unable to open history: %w", err)
		}

		session, ok := store.Get(n - 1)
		if !ok {
			return fmt.Errorf("no session %d, history holds %d", n, store.Len())
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		err = speak(ctx, session.FullText, session.Chunks, session.Voice, session.Speed, false)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all reading history",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := openHistory()
		if err != nil {
			return fmt.Errorf("unable to open history: %w", err)
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("unable to clear history: %w", err)
		}
		fmt.Println("Reading history cleared.")
		return nil
	},
}

func printSessions(sessions []history.Session) {
	previewWidth := int(width) - 10
	if previewWidth < 20 {
		previewWidth = 20
	}
	for i, s := range sessions {
		fmt.Printf("%s %s\n", keyword(fmt.Sprintf("%2d.", i+1)), s.Describe(previewWidth))
	}
}

func init() {
	historyCmd.AddCommand(historySearchCmd, historyReplayCmd, historyClearCmd)
}
