package synth

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/flight505/Readable/internal/cache"
)

// Task pairs one chunk with its position in the input sequence. The
// position survives out-of-order completion so results can be reordered.
type Task struct {
	Index int
	Text  string
	Voice string
	Speed float64
}

// ProgressFunc receives a tick as each task finishes, successful or not.
// completed increases by one per call and reaches total exactly once.
type ProgressFunc func(completed, total int)

// Generator runs batch synthesis over a bounded worker pool with the
// audio cache as a lookaside: hits skip the engine entirely, misses are
// stored after a successful synthesis.
type Generator struct {
	engine  Engine
	cache   *cache.Cache
	workers int
}

// NewGenerator creates a batch generator. A nil cache disables caching.
func NewGenerator(engine Engine, c *cache.Cache, workers int) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{engine: engine, cache: c, workers: workers}
}

// GenerateBatch synthesizes every chunk and returns one slot per chunk
// in input order. A chunk that fails leaves a nil slot; failures never
// abort sibling tasks. Only context cancellation aborts the whole batch.
// Progress callbacks are delivered from a single collecting goroutine,
// so they arrive serialized and monotonically.
func (g *Generator) GenerateBatch(ctx context.Context, chunks []string, voice string, speed float64, progress ProgressFunc) ([][]byte, error) {
	total := len(chunks)
	if total == 0 {
		return nil, nil
	}

	workers := g.workers
	if workers > total {
		workers = total
	}

	type completion struct {
		index int
		audio []byte
	}

	tasks := make(chan Task)
	// Buffered to the batch size so workers never block on a send after
	// the collector has bailed out on cancellation.
	completions := make(chan completion, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				completions <- completion{index: t.Index, audio: g.synthesizeOne(ctx, t)}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, text := range chunks {
			select {
			case tasks <- Task{Index: i, Text: text, Voice: voice, Speed: speed}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([][]byte, total)
	for completed := 0; completed < total; {
		select {
		case c := <-completions:
			results[c.index] = c.audio
			completed++
			if progress != nil {
				progress(completed, total)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	wg.Wait()
	return results, nil
}

// synthesizeOne resolves a single task: cache hit, or engine call with
// store-on-miss. Returns nil on failure.
func (g *Generator) synthesizeOne(ctx context.Context, t Task) []byte {
	if g.cache != nil {
		if audio, ok := g.cache.Get(t.Text, t.Voice, t.Speed); ok {
			return audio
		}
	}

	audio, err := g.engine.Synthesize(ctx, t.Text, t.Voice, t.Speed)
	if err != nil {
		log.Warn("chunk synthesis failed", "chunk", t.Index, "err", err)
		return nil
	}
	if !ValidWAV(audio) {
		log.Warn("engine returned invalid audio", "chunk", t.Index, "bytes", len(audio))
		return nil
	}

	if g.cache != nil {
		g.cache.Put(t.Text, t.Voice, t.Speed, audio)
	}
	return audio
}

// Compact drops failed slots, preserving the order of the surviving
// audio. The result is what the playback queue consumes.
func Compact(results [][]byte) [][]byte {
	kept := make([][]byte, 0, len(results))
	for _, audio := range results {
		if len(audio) > 0 {
			kept = append(kept, audio)
		}
	}
	return kept
}
