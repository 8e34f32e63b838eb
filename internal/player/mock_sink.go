package player

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// MockSink is an in-memory Sink for tests. Chunks either play for a
// configured duration or until FinishCurrent is called.
type MockSink struct {
	mu        sync.Mutex
	playing   bool
	paused    bool
	playFor   time.Duration // 0 means play until FinishCurrent
	deadline  time.Time
	remaining time.Duration

	starts  []string
	failOn  map[string]bool
	pauses  int
	resumes int
	stops   int
	closed  bool
}

// NewMockSink creates a sink whose chunks play until finished manually.
func NewMockSink() *MockSink {
	return &MockSink{failOn: make(map[string]bool)}
}

// SetPlayFor makes every subsequent chunk finish on its own after d.
func (s *MockSink) SetPlayFor(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playFor = d
}

// FailStart makes Start fail for files with the given base name.
func (s *MockSink) FailStart(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[base] = true
}

// Start records the chunk and begins its simulated playback.
func (s *MockSink) Start(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := filepath.Base(path)
	s.starts = append(s.starts, base)
	if s.failOn[base] {
		s.playing = false
		return fmt.Errorf("injected start failure for %s", base)
	}

	s.playing = true
	s.paused = false
	if s.playFor > 0 {
		s.deadline = time.Now().Add(s.playFor)
	}
	return nil
}

// Pause freezes the simulated clock for the current chunk.
func (s *MockSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.paused {
		return
	}
	s.paused = true
	s.pauses++
	if s.playFor > 0 {
		s.remaining = time.Until(s.deadline)
	}
}

// Resume continues the current chunk where it was paused.
func (s *MockSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || !s.paused {
		return
	}
	s.paused = false
	s.resumes++
	if s.playFor > 0 {
		s.deadline = time.Now().Add(s.remaining)
	}
}

// Busy reports whether the current chunk is still rendering. Mirrors the
// device sink: a paused chunk is not busy.
func (s *MockSink) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || s.paused {
		return false
	}
	if s.playFor > 0 && time.Now().After(s.deadline) {
		s.playing = false
		return false
	}
	return true
}

// FinishCurrent marks the current chunk as played to the end.
func (s *MockSink) FinishCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.paused = false
}

// Stop halts the current chunk.
func (s *MockSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.paused = false
	s.stops++
}

// Close marks the sink closed.
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Starts returns the base names handed to Start, in order.
func (s *MockSink) Starts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.starts))
	copy(out, s.starts)
	return out
}

// PauseCount returns the number of Pause calls that took effect.
func (s *MockSink) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

// ResumeCount returns the number of Resume calls that took effect.
func (s *MockSink) ResumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes
}

// StopCount returns the number of Stop calls.
func (s *MockSink) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Closed reports whether Close was called.
func (s *MockSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
