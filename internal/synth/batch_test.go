package synth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flight505/Readable/internal/cache"
)

func TestGenerator_BatchOrderAndContent(t *testing.T) {
	engine := NewMock()
	gen := NewGenerator(engine, nil, 4)

	chunks := []string{"first chunk", "second chunk", "third chunk", "fourth chunk"}
	results, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, nil)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}

	if len(results) != len(chunks) {
		t.Fatalf("Result length mismatch: got %d, want %d", len(results), len(chunks))
	}

	// The mock is deterministic per text, so each slot must equal a
	// direct synthesis of its chunk.
	for i, text := range chunks {
		want, err := engine.Synthesize(context.Background(), text, "mock_alpha", 1.0)
		if err != nil {
			t.Fatalf("Reference synthesis failed: %v", err)
		}
		if !bytes.Equal(results[i], want) {
			t.Errorf("Slot %d does not match direct synthesis of its chunk", i)
		}
	}
}

func TestGenerator_FailedChunkLeavesEmptySlot(t *testing.T) {
	engine := NewMock()
	engine.FailOn("bad chunk")
	gen := NewGenerator(engine, nil, 2)

	chunks := []string{"good one", "bad chunk", "good two"}
	results, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, nil)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}

	if results[1] != nil {
		t.Error("Failed chunk should leave a nil slot")
	}
	if len(results[0]) == 0 || len(results[2]) == 0 {
		t.Error("Sibling chunks should survive a failed chunk")
	}
}

func TestGenerator_ProgressTicksOncePerTask(t *testing.T) {
	engine := NewMock()
	engine.SetDelay(5 * time.Millisecond)
	gen := NewGenerator(engine, nil, 3)

	chunks := []string{"alpha text", "beta text", "gamma text", "delta text", "epsilon text"}

	// Callbacks arrive from the collecting goroutine only, so a plain
	// slice is safe here.
	var ticks [][2]int
	progress := func(completed, total int) {
		ticks = append(ticks, [2]int{completed, total})
	}

	if _, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, progress); err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}

	if len(ticks) != len(chunks) {
		t.Fatalf("Progress tick count mismatch: got %d, want %d", len(ticks), len(chunks))
	}
	for i, tick := range ticks {
		if tick[0] != i+1 {
			t.Errorf("Tick %d reported completed=%d, want %d", i, tick[0], i+1)
		}
		if tick[1] != len(chunks) {
			t.Errorf("Tick %d reported total=%d, want %d", i, tick[1], len(chunks))
		}
	}
}

func TestGenerator_AllChunksFail(t *testing.T) {
	engine := NewMock()
	engine.SetFailure(errors.New("engine down"))
	gen := NewGenerator(engine, nil, 2)

	chunks := []string{"one", "two", "three"}
	results, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, nil)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}

	if len(results) != len(chunks) {
		t.Fatalf("Result length mismatch: got %d, want %d", len(results), len(chunks))
	}
	for i, slot := range results {
		if slot != nil {
			t.Errorf("Slot %d should be empty when all synthesis fails", i)
		}
	}

	if compacted := Compact(results); len(compacted) != 0 {
		t.Errorf("Compact of an all-failed batch should be empty, got %d entries", len(compacted))
	}
}

func TestGenerator_CacheHitSkipsEngine(t *testing.T) {
	c, err := cache.New(t.TempDir(), 10*1024*1024)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	engine := NewMock()
	gen := NewGenerator(engine, c, 2)

	chunks := []string{"repeated text", "another text"}
	if _, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, nil); err != nil {
		t.Fatalf("First batch failed: %v", err)
	}
	if engine.CallCount() != 2 {
		t.Fatalf("Expected 2 engine calls on a cold cache, got %d", engine.CallCount())
	}
	if _, ok := c.Get("repeated text", "mock_alpha", 1.0); !ok {
		t.Error("Batch should store synthesized audio in the cache")
	}

	if _, err := gen.GenerateBatch(context.Background(), chunks, "mock_alpha", 1.0, nil); err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if engine.CallCount() != 2 {
		t.Errorf("Warm batch should not call the engine: got %d calls, want 2", engine.CallCount())
	}
}

func TestGenerator_CancelAbortsBatch(t *testing.T) {
	engine := NewMock()
	engine.SetDelay(50 * time.Millisecond)
	gen := NewGenerator(engine, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	chunks := []string{"one", "two", "three", "four"}
	if _, err := gen.GenerateBatch(ctx, chunks, "mock_alpha", 1.0, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGenerator_EmptyBatch(t *testing.T) {
	gen := NewGenerator(NewMock(), nil, 4)

	results, err := gen.GenerateBatch(context.Background(), nil, "mock_alpha", 1.0, nil)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if results != nil {
		t.Errorf("Empty input should produce nil results, got %d slots", len(results))
	}
}

func TestCompact_PreservesSurvivorOrder(t *testing.T) {
	first := []byte("aaaa")
	third := []byte("cccc")
	results := [][]byte{first, nil, third, nil}

	compacted := Compact(results)
	if len(compacted) != 2 {
		t.Fatalf("Compacted length mismatch: got %d, want 2", len(compacted))
	}
	if !bytes.Equal(compacted[0], first) || !bytes.Equal(compacted[1], third) {
		t.Error("Compact changed the relative order of surviving slots")
	}
}
