package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/engine"
	"github.com/sonoscribe/sonoscribe/internal/segment"
)

// countingEngine returns one fixed segment per chunk and tracks concurrency.
type countingEngine struct {
	mu         sync.Mutex
	inFlight   int32
	maxSeen    int32
	delay      time.Duration
	failPath   string
	langByPath map[string]string
}

func (c *countingEngine) Transcribe(_ context.Context, audioPath string, _ engine.Options) (engine.Result, error) {
	cur := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)

	c.mu.Lock()
	if cur > c.maxSeen {
		c.maxSeen = cur
	}
	lang := c.langByPath[audioPath]
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if audioPath == c.failPath {
		return engine.Result{}, errors.New("inference backend crashed")
	}
	return engine.Result{
		Segments: []segment.Segment{{Start: 0, End: 10 * time.Second, Text: "text of " + audioPath}},
		Language: lang,
	}, nil
}

func chunkFixture(n int) []audio.Chunk {
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		chunks[i] = audio.Chunk{
			Path:  "/chunks/chunk_" + string(rune('a'+i)) + ".ogg",
			Index: i,
			Start: time.Duration(i) * 100 * time.Second,
			End:   time.Duration(i+1)*100*time.Second + 15*time.Second,
		}
	}
	return chunks
}

func TestPool_RebasesTimestamps(t *testing.T) {
	t.Parallel()

	eng := &countingEngine{langByPath: map[string]string{"/chunks/chunk_a.ogg": "en"}}
	pool := engine.NewPool(eng, 4)

	chunks := chunkFixture(3)
	results, lang, err := pool.TranscribeAll(context.Background(), chunks, engine.Options{})
	if err != nil {
		t.Fatalf("TranscribeAll: %v", err)
	}
	if lang != "en" {
		t.Errorf("language = %q, want en", lang)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, segs := range results {
		if len(segs) != 1 {
			t.Fatalf("chunk %d: got %d segments, want 1", i, len(segs))
		}
		wantStart := time.Duration(i) * 100 * time.Second
		if segs[0].Start != wantStart {
			t.Errorf("chunk %d: start = %v, want %v (re-based to job timeline)", i, segs[0].Start, wantStart)
		}
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	eng := &countingEngine{delay: 30 * time.Millisecond}
	pool := engine.NewPool(eng, 2)

	_, _, err := pool.TranscribeAll(context.Background(), chunkFixture(8), engine.Options{})
	if err != nil {
		t.Fatalf("TranscribeAll: %v", err)
	}
	if eng.maxSeen > 2 {
		t.Errorf("observed %d concurrent transcriptions, want at most 2", eng.maxSeen)
	}
}

func TestPool_AnyChunkFailureFailsAll(t *testing.T) {
	t.Parallel()

	chunks := chunkFixture(4)
	eng := &countingEngine{failPath: chunks[2].Path}
	pool := engine.NewPool(eng, 4)

	_, _, err := pool.TranscribeAll(context.Background(), chunks, engine.Options{})
	if err == nil {
		t.Fatal("expected error when a chunk fails")
	}
	if !strings.Contains(err.Error(), "chunk 2") {
		t.Errorf("err = %v, want chunk index in message", err)
	}
}

func TestPool_EmptyChunks(t *testing.T) {
	t.Parallel()

	pool := engine.NewPool(&countingEngine{}, 4)
	results, lang, err := pool.TranscribeAll(context.Background(), nil, engine.Options{})
	if err != nil || results != nil || lang != "" {
		t.Errorf("got (%v, %q, %v), want (nil, \"\", nil)", results, lang, err)
	}
}
