// Package config holds the typed runtime configuration for readable.
package config

import (
	"fmt"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/flight505/Readable/utils"
)

// Kokoro voices shipped with the default model. Used as a fallback when
// the engine cannot be queried for its voice list.
var DefaultVoices = []string{
	"af_bella", "af_sarah", "am_adam", "am_michael",
	"bf_emma", "bf_isabella", "bm_george", "bm_lewis",
}

// KokoroConfig configures the local Kokoro TTS server engine.
type KokoroConfig struct {
	URL      string
	Fallback bool
}

// CacheConfig configures the persistent audio cache.
type CacheConfig struct {
	Enabled   bool
	Dir       string
	MaxSizeMB int
}

// TextConfig bounds input text processing.
type TextConfig struct {
	MaxLength    int
	MaxChunks    int
	ChunkChars   int
	AnnounceCode bool
}

// HistoryConfig configures the reading-session history store.
type HistoryConfig struct {
	Enabled bool
	Limit   int
}

// Config is the snapshot of all settings handed to the pipeline
// components. It is assembled once per invocation from viper.
type Config struct {
	Engine  string
	Voice   string
	Speed   float64
	Workers int
	Kokoro  KokoroConfig
	Cache   CacheConfig
	Text    TextConfig
	History HistoryConfig
}

// SetDefaults registers every configuration default on v. Called before
// the config file is read so that absent keys resolve sensibly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine", "kokoro")
	v.SetDefault("voice", "af_bella")
	v.SetDefault("speed", 1.0)
	v.SetDefault("workers", 4)
	v.SetDefault("kokoro.url", "http://localhost:8000")
	v.SetDefault("kokoro.fallback", true)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.max_size_mb", 100)
	v.SetDefault("text.max_length", 1000000)
	v.SetDefault("text.max_chunks", 100)
	v.SetDefault("text.chunk_chars", 750)
	v.SetDefault("text.announce_code", false)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.limit", 50)

	// Environment names carried over from earlier releases.
	_ = v.BindEnv("kokoro.url", "READABLE_TTS_URL", "KOKORO_TTS_URL")
	_ = v.BindEnv("workers", "READABLE_MAX_WORKERS")
	_ = v.BindEnv("text.max_length", "READABLE_MAX_TEXT_LENGTH")
}

// FromViper builds a validated Config from the given viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Engine:  v.GetString("engine"),
		Voice:   v.GetString("voice"),
		Speed:   v.GetFloat64("speed"),
		Workers: v.GetInt("workers"),
		Kokoro: KokoroConfig{
			URL:      v.GetString("kokoro.url"),
			Fallback: v.GetBool("kokoro.fallback"),
		},
		Cache: CacheConfig{
			Enabled:   v.GetBool("cache.enabled"),
			Dir:       utils.ExpandPath(v.GetString("cache.dir")),
			MaxSizeMB: v.GetInt("cache.max_size_mb"),
		},
		Text: TextConfig{
			MaxLength:    v.GetInt("text.max_length"),
			MaxChunks:    v.GetInt("text.max_chunks"),
			ChunkChars:   v.GetInt("text.chunk_chars"),
			AnnounceCode: v.GetBool("text.announce_code"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			Limit:   v.GetInt("history.limit"),
		},
	}
	if cfg.Cache.Dir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return cfg, fmt.Errorf("unable to resolve cache directory: %w", err)
		}
		cfg.Cache.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every value range the pipeline depends on.
func (c Config) Validate() error {
	switch c.Engine {
	case "kokoro", "edge", "mock":
	default:
		return fmt.Errorf("unknown engine %q: use kokoro, edge or mock", c.Engine)
	}
	if c.Speed < 0.5 || c.Speed > 2.0 {
		return fmt.Errorf("speed must be between 0.5 and 2.0, got %.2f", c.Speed)
	}
	if c.Workers < 1 || c.Workers > 16 {
		return fmt.Errorf("workers must be between 1 and 16, got %d", c.Workers)
	}
	if c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 10000 {
		return fmt.Errorf("cache max_size_mb must be between 1 and 10000, got %d", c.Cache.MaxSizeMB)
	}
	if c.Text.MaxLength < 1 {
		return fmt.Errorf("text max_length must be positive, got %d", c.Text.MaxLength)
	}
	if c.Text.MaxChunks < 1 {
		return fmt.Errorf("text max_chunks must be positive, got %d", c.Text.MaxChunks)
	}
	if c.Text.ChunkChars < 50 {
		return fmt.Errorf("text chunk_chars must be at least 50, got %d", c.Text.ChunkChars)
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("history limit must be positive, got %d", c.History.Limit)
	}
	return nil
}

// CacheMaxSizeBytes converts the configured cache budget to bytes.
func (c Config) CacheMaxSizeBytes() int64 {
	return int64(c.Cache.MaxSizeMB) * 1024 * 1024
}

// DefaultCacheDir returns the per-user audio cache directory.
func DefaultCacheDir() (string, error) {
	scope := gap.NewScope(gap.User, "readable")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve cache path: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// DefaultHistoryPath returns the per-user history store location.
func DefaultHistoryPath() (string, error) {
	scope := gap.NewScope(gap.User, "readable")
	path, err := scope.DataPath("history.json.zst")
	if err != nil {
		return "", fmt.Errorf("unable to resolve history path: %w", err)
	}
	return path, nil
}
