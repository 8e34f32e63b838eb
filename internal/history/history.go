// Package history persists recent reading sessions so they can be
// listed, searched and replayed.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

const (
	defaultLimit     = 50
	previewRunes     = 100
	compressionLevel = 3

	// charsPerSecond is the speech rate used to estimate how long a
	// session takes to read aloud.
	charsPerSecond = 11.8
)

// Session is one recorded reading.
type Session struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Preview          string    `json:"preview"`
	FullText         string    `json:"full_text"`
	Chunks           []string  `json:"chunks"`
	Voice            string    `json:"voice"`
	Speed            float64   `json:"speed"`
	ChunkCount       int       `json:"chunk_count"`
	TextLength       int       `json:"text_length"`
	DurationEstimate float64   `json:"duration_estimate"`
}

// Describe renders the session for a listing, truncated to width cells.
func (s Session) Describe(width int) string {
	preview := runewidth.Truncate(s.Preview, width, "…")
	minutes := int(s.DurationEstimate / 60)
	return fmt.Sprintf("%s (%dm, %s)", preview, minutes, relativeTime(time.Since(s.Timestamp)))
}

// Store keeps sessions most-recent-first, persisted as zstd-compressed
// JSON. Load failures degrade to an empty store; save failures are
// logged and playback continues.
type Store struct {
	mu       sync.Mutex
	path     string
	limit    int
	sessions []Session

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New opens the store at path, creating the directory as needed.
func New(path string, limit int) (*Store, error) {
	if limit < 1 {
		limit = defaultLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{
		path:    path,
		limit:   limit,
		encoder: encoder,
		decoder: decoder,
	}
	s.sessions = s.load()
	return s, nil
}

// load reads the store from disk. Missing or corrupt stores come back
// empty.
func (s *Store) load() []Session {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read history, starting empty", "path", s.path, "err", err)
		}
		return nil
	}

	raw, err := s.decoder.DecodeAll(blob, nil)
	if err != nil {
		log.Warn("failed to decompress history, starting empty", "path", s.path, "err", err)
		return nil
	}

	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		log.Warn("failed to parse history, starting empty", "path", s.path, "err", err)
		return nil
	}
	return sessions
}

// persist writes the store to disk. Must be called with s.mu held.
func (s *Store) persist() error {
	if len(s.sessions) > s.limit {
		s.sessions = s.sessions[:s.limit]
	}

	raw, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	compressed := s.encoder.EncodeAll(raw, nil)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Add records a reading session at the front of the store.
func (s *Store) Add(text string, chunks []string, voice string, speed float64) Session {
	textLen := utf8.RuneCountInString(text)
	session := Session{
		ID:               uuid.New().String(),
		Timestamp:        time.Now(),
		Preview:          makePreview(text),
		FullText:         text,
		Chunks:           append([]string(nil), chunks...),
		Voice:            voice,
		Speed:            speed,
		ChunkCount:       len(chunks),
		TextLength:       textLen,
		DurationEstimate: float64(textLen) / charsPerSecond,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = append([]Session{session}, s.sessions...)
	if err := s.persist(); err != nil {
		log.Error("failed to save history", "err", err)
	}
	return session
}

// Recent returns up to n sessions, most recent first.
func (s *Store) Recent(n int) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.sessions) {
		n = len(s.sessions)
	}
	out := make([]Session, n)
	copy(out, s.sessions[:n])
	return out
}

// Get returns the session at index, where 0 is the most recent.
func (s *Store) Get(index int) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sessions) {
		return Session{}, false
	}
	return s.sessions[index], true
}

// Search fuzzy-matches query against session previews, best match
// first.
func (s *Store) Search(query string) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	previews := make([]string, len(s.sessions))
	for i, session := range s.sessions {
		previews[i] = session.Preview
	}

	matches := fuzzy.Find(query, previews)
	out := make([]Session, 0, len(matches))
	for _, m := range matches {
		out = append(out, s.sessions[m.Index])
	}
	return out
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Clear removes all sessions.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return s.persist()
}

func makePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}

func relativeTime(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return "just now"
	}
}
