package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/segment"
)

// Parallelism bounds.
const (
	// MaxRecommendedParallel is the recommended upper limit for concurrent
	// transcription calls. Oversubscribing the accelerator degrades
	// throughput for all chunks instead of failing fast.
	MaxRecommendedParallel = 8

	defaultParallel = 4
)

// Pool runs the engine over a job's chunks with bounded concurrency.
// Each chunk's failure is isolated from its siblings, but the job fails if
// any chunk fails: a silently partial transcript must never look completed.
type Pool struct {
	engine      Engine
	maxParallel int
}

// NewPool creates a Pool around the given engine.
// maxParallel is clamped to [1, MaxRecommendedParallel].
func NewPool(engine Engine, maxParallel int) *Pool {
	if maxParallel < 1 {
		maxParallel = defaultParallel
	}
	if maxParallel > MaxRecommendedParallel {
		maxParallel = MaxRecommendedParallel
	}
	return &Pool{engine: engine, maxParallel: maxParallel}
}

// TranscribeAll transcribes all chunks concurrently and returns per-chunk
// segment lists in chunk order, with timestamps re-based to the original job
// timeline so the merger never needs chunk metadata. The detected language of
// the first chunk is returned as the job language.
//
// If any chunk fails, the whole call fails with an error naming the chunk.
func (p *Pool) TranscribeAll(ctx context.Context, chunks []audio.Chunk, opts Options) ([][]segment.Segment, string, error) {
	if len(chunks) == 0 {
		return nil, "", nil
	}

	results := make([][]segment.Segment, len(chunks))
	languages := make([]string, len(chunks))

	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, p.maxParallel)
	g, ctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			res, err := p.engine.Transcribe(ctx, chunk.Path, opts)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", chunk.Index, filepath.Base(chunk.Path), err)
			}
			results[i] = rebase(res.Segments, chunk)
			languages[i] = res.Language
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	language := ""
	for _, l := range languages {
		if l != "" {
			language = l
			break
		}
	}
	return results, language, nil
}

// rebase shifts chunk-local timestamps into the original job timeline and
// clamps them to the chunk window.
func rebase(segments []segment.Segment, chunk audio.Chunk) []segment.Segment {
	out := make([]segment.Segment, 0, len(segments))
	for _, s := range segments {
		s.Start += chunk.Start
		s.End += chunk.Start
		if s.End > chunk.End {
			s.End = chunk.End
		}
		if s.End <= s.Start {
			continue
		}
		out = append(out, s)
	}
	return out
}
