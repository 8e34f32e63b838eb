package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// setupLog routes log output away from the terminal so warnings from the
// audio path never tear up rendered text. READABLE_LOGFILE appends debug
// logs to a file; READABLE_DEBUG sends them to stderr instead.
func setupLog() (func() error, error) {
	if file := os.Getenv("READABLE_LOGFILE"); file != "" {
		f, err := tea.LogToFile(file, "readable")
		if err != nil {
			return nil, fmt.Errorf("error setting up logging: %w", err)
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		return f.Close, nil
	}

	if os.Getenv("READABLE_DEBUG") != "" {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.DebugLevel)
		return func() error { return nil }, nil
	}

	log.SetOutput(io.Discard)
	return func() error { return nil }, nil
}
