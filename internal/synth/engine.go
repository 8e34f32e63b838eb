// Package synth turns text chunks into playable WAV audio. It defines
// the engine boundary, the concrete engines (kokoro, edge, mock), and a
// parallel batch generator that consults the audio cache before calling
// an engine.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/flight505/Readable/internal/config"
)

var (
	// ErrUnknownEngine reports an engine name with no implementation.
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrEngineUnavailable reports an engine that cannot serve requests.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrInvalidAudio reports a synthesis result that is not playable WAV.
	ErrInvalidAudio = errors.New("invalid audio data")

	// ErrNoAudio reports a batch in which every chunk failed to
	// synthesize. Raised by callers, not by the generator itself.
	ErrNoAudio = errors.New("no audio generated")
)

// Voice identifies one synthesizer voice.
type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
}

// Engine is the boundary to a concrete synthesis backend. Implementations
// return complete WAV blobs (44-byte header minimum, 16-bit PCM) so the
// cache and player handle every engine's output the same way.
type Engine interface {
	// Name returns the identifier used in config and on the command line.
	Name() string

	// Synthesize converts text to WAV audio at the given voice and speed.
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)

	// Voices lists the voices the engine supports.
	Voices(ctx context.Context) ([]Voice, error)

	// Available reports whether the engine can serve requests right now.
	Available(ctx context.Context) bool
}

// Select returns the engine named in the configuration. When kokoro is
// requested but its server is unreachable, the edge engine is substituted
// if fallback is enabled.
func Select(ctx context.Context, cfg *config.Config) (Engine, error) {
	switch cfg.Engine {
	case "kokoro":
		k := NewKokoro(cfg.Kokoro.URL)
		if k.Available(ctx) {
			return k, nil
		}
		if cfg.Kokoro.Fallback {
			log.Warn("kokoro server unreachable, falling back to edge", "url", cfg.Kokoro.URL)
			return NewEdge(), nil
		}
		return nil, fmt.Errorf("%w: kokoro server at %s", ErrEngineUnavailable, cfg.Kokoro.URL)
	case "edge":
		return NewEdge(), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
