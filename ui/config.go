package ui

import (
	"github.com/flight505/Readable/internal/history"
	"github.com/flight505/Readable/internal/player"
	"github.com/flight505/Readable/internal/synth"
)

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint

	// File path being read, empty for non-file sources
	Path string

	// For debugging the UI
	GlamourEnabled bool `env:"READABLE_ENABLE_GLAMOUR" envDefault:"true"`
	WatchFile      bool `env:"READABLE_WATCH_FILE"     envDefault:"true"`
}

// Session bundles the reading material with the wired audio pipeline.
type Session struct {
	// Content is the raw source, shown in the viewport.
	Content string
	// Speakable is the cleaned prose the chunks were cut from.
	Speakable string
	Chunks    []string
	Voice     string
	Speed     float64

	Generator *synth.Generator
	Queue     *player.Queue
	History   *history.Store

	// Reprocess turns freshly loaded source text into displayable
	// content, speakable prose and chunks using the caller's text
	// settings. Used when a watched file changes.
	Reprocess func(raw string) (content, speakable string, chunks []string, err error)
}
