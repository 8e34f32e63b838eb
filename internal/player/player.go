// Package player owns the playback queue: an ordered list of synthesized
// audio blobs played sequentially through a Sink on a dedicated
// background goroutine, with pause, resume, skip and stop control from
// any goroutine.
package player

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const defaultPoll = 100 * time.Millisecond

// Status is a point-in-time snapshot of the queue.
type Status struct {
	Mode     Mode
	Current  int // 1-based chunk position, 0 when no queue is loaded
	Total    int
	HasQueue bool
}

// Queue plays audio chunks in order. All methods are safe for concurrent
// use. OnChunkChange and OnQueueComplete fire from the playback
// goroutine; callers that need another thread must marshal themselves
// and must not call back into the Queue synchronously.
type Queue struct {
	mu       sync.Mutex
	sink     Sink
	chunks   [][]byte
	current  int
	mode     Mode
	stop     chan struct{}
	loopDone chan struct{}

	poll    time.Duration
	tempDir string

	// OnChunkChange reports the 1-based position of the chunk that just
	// started and the queue length.
	OnChunkChange func(current, total int)

	// OnQueueComplete fires exactly once when the queue plays to its
	// natural end. It does not fire on explicit stop.
	OnQueueComplete func()
}

// NewQueue creates a playback queue rendering through sink.
func NewQueue(sink Sink) (*Queue, error) {
	tempDir, err := os.MkdirTemp("", "readable-audio-")
	if err != nil {
		return nil, fmt.Errorf("creating audio temp dir: %w", err)
	}

	return &Queue{
		sink:    sink,
		mode:    ModeIdle,
		poll:    defaultPoll,
		tempDir: tempDir,
	}, nil
}

// LoadQueue replaces the queue contents and resets the cursor. Any
// in-progress playback is stopped synchronously first, before the state
// lock is taken, so a running loop can never deadlock against the load.
func (q *Queue) LoadQueue(blobs [][]byte) {
	q.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = append([][]byte(nil), blobs...)
	q.current = 0
	q.mode = ModeIdle
}

// Play starts playback, or resumes the current chunk in place when
// paused. No-op while already playing, on an empty queue, or when the
// cursor has run off the end.
func (q *Queue) Play() {
	q.mu.Lock()

	if len(q.chunks) == 0 {
		q.mu.Unlock()
		log.Warn("cannot play, queue is empty")
		return
	}

	switch q.mode {
	case ModePaused:
		q.sink.Resume()
		q.mode = ModePlaying
		q.mu.Unlock()
		return
	case ModePlaying:
		q.mu.Unlock()
		return
	}

	if q.current >= len(q.chunks) {
		q.mu.Unlock()
		return
	}

	q.mode = ModePlaying
	q.stop = make(chan struct{})
	q.loopDone = make(chan struct{})
	go q.loop(q.stop, q.loopDone)
	q.mu.Unlock()
}

// Pause suspends the current chunk. The cursor does not move; the
// playback loop treats a paused chunk as still waiting, never as
// finished.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.mode.CanPause() {
		return
	}
	q.sink.Pause()
	q.mode = ModePaused
}

// Skip advances the cursor. During active playback the current chunk is
// cut off and the loop begins the next one; a paused queue resumes
// playing at the new position. Skipping past the last chunk stops the
// queue.
func (q *Queue) Skip() {
	q.mu.Lock()
	if len(q.chunks) == 0 {
		q.mu.Unlock()
		return
	}

	if q.current >= len(q.chunks)-1 {
		q.mu.Unlock()
		q.Stop()
		return
	}

	q.current++
	active := q.mode.Active()
	if active {
		q.mode = ModePlaying
	}
	q.mu.Unlock()

	if active {
		// The loop notices the idle sink and starts the chunk at the
		// new cursor.
		q.sink.Stop()
	}
}

// Stop signals the playback loop to exit, halts the sink and waits for
// the loop to finish. Safe to call from any state, any number of times,
// including before the first Play and after natural completion.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stop != nil {
		select {
		case <-q.stop:
		default:
			close(q.stop)
		}
	}
	loopDone := q.loopDone
	if q.mode.Active() {
		q.mode = ModeStopped
	}
	q.mu.Unlock()

	q.sink.Stop()

	if loopDone != nil {
		<-loopDone
	}
}

// Status returns a snapshot of the queue state.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Status{
		Mode:     q.mode,
		Total:    len(q.chunks),
		HasQueue: len(q.chunks) > 0,
	}
	if s.HasQueue {
		s.Current = q.current + 1
		if s.Current > s.Total {
			s.Current = s.Total
		}
	}
	return s
}

// Close stops playback and releases the temp directory and the sink.
func (q *Queue) Close() error {
	q.Stop()
	if q.tempDir != "" {
		os.RemoveAll(q.tempDir)
	}
	return q.sink.Close()
}

// loop plays chunks in order until the queue runs out or stop is
// signalled. It runs on its own goroutine, exactly one per Play
// transition out of idle.
func (q *Queue) loop(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			q.finish(true)
			return
		default:
		}

		q.mu.Lock()
		if q.current >= len(q.chunks) {
			q.mu.Unlock()
			q.finish(false)
			return
		}
		index := q.current
		blob := q.chunks[index]
		total := len(q.chunks)
		q.mu.Unlock()

		if err := q.startChunk(index, blob); err != nil {
			log.Warn("skipping unplayable chunk", "chunk", index+1, "err", err)
			q.advanceFrom(index)
			continue
		}

		if q.OnChunkChange != nil {
			q.OnChunkChange(index+1, total)
		}

		if stopped := q.waitChunk(stop); stopped {
			q.finish(true)
			return
		}

		q.advanceFrom(index)
	}
}

// waitChunk blocks until the sink finishes the current chunk. A paused
// queue keeps waiting rather than counting the chunk as finished.
// Returns true when stop was signalled.
func (q *Queue) waitChunk(stop chan struct{}) bool {
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return true
		case <-ticker.C:
			busy := q.sink.Busy()

			q.mu.Lock()
			paused := q.mode == ModePaused
			q.mu.Unlock()

			if paused {
				continue
			}
			if !busy {
				return false
			}
		}
	}
}

// advanceFrom moves the cursor off index, unless a concurrent Skip
// already moved it.
func (q *Queue) advanceFrom(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == index {
		q.current++
	}
}

// startChunk materializes the blob as a temp WAV file and hands it to
// the sink.
func (q *Queue) startChunk(index int, blob []byte) error {
	path := filepath.Join(q.tempDir, fmt.Sprintf("chunk_%d.wav", index))
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("writing chunk file: %w", err)
	}
	return q.sink.Start(path)
}

// finish records the loop's exit. Completion fires only on a natural
// end, never after a stop request.
func (q *Queue) finish(stopped bool) {
	q.mu.Lock()
	q.mode = ModeStopped
	var complete func()
	if !stopped {
		complete = q.OnQueueComplete
	}
	q.mu.Unlock()

	if complete != nil {
		complete()
	}
}
