package synth

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

const mockSampleRate = 22050

// Mock is a deterministic in-memory engine used by tests and by
// --engine mock dry runs. Output is a short sine burst whose frequency
// and length derive from the text, so distinct inputs produce distinct,
// reproducible blobs. All control methods are safe for concurrent use
// with Synthesize.
type Mock struct {
	mu        sync.Mutex
	delay     time.Duration
	failErr   error
	failTexts map[string]bool
	calls     int
}

// NewMock creates a mock engine with no delay and no failure injection.
func NewMock() *Mock {
	return &Mock{failTexts: make(map[string]bool)}
}

func (m *Mock) Name() string { return "mock" }

// Synthesize returns a synthetic WAV blob for the text, honoring any
// configured delay and failure injection.
func (m *Mock) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	delay := m.delay
	failErr := m.failErr
	failThis := m.failTexts[text]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failErr != nil {
		return nil, failErr
	}
	if failThis {
		return nil, fmt.Errorf("injected failure for %q", text)
	}
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	return EncodeWAV(tone(text), mockSampleRate), nil
}

// Voices returns a fixed set of synthetic voices.
func (m *Mock) Voices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "mock_alpha", Name: "Mock Alpha", Language: "en-US", Gender: "neutral"},
		{ID: "mock_beta", Name: "Mock Beta", Language: "en-GB", Gender: "female"},
		{ID: "mock_gamma", Name: "Mock Gamma", Language: "en-US", Gender: "male"},
	}, nil
}

func (m *Mock) Available(ctx context.Context) bool { return true }

// SetDelay sets the simulated processing delay per call.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetFailure makes every subsequent call fail with err.
func (m *Mock) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// ClearFailure resets the engine to normal operation.
func (m *Mock) ClearFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = nil
	m.failTexts = make(map[string]bool)
}

// FailOn makes calls for the given texts fail while others succeed.
func (m *Mock) FailOn(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.failTexts[t] = true
	}
}

// CallCount returns the number of Synthesize calls made so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// tone renders a quiet sine burst sized by the text length, pitched by a
// hash of the text.
func tone(text string) []byte {
	h := fnv.New32a()
	h.Write([]byte(text))
	freq := 200 + float64(h.Sum32()%800)

	samples := mockSampleRate / 10 * (1 + len(text)/40)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(3000 * math.Sin(2*math.Pi*freq*float64(i)/mockSampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}
