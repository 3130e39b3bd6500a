// Package worker runs the processing side of the pipeline: it polls the
// queue store for pending jobs, claims them, and drives each one through
// probe, split, transcribe, merge, reformat, and summarize.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/engine"
	"github.com/sonoscribe/sonoscribe/internal/format"
	"github.com/sonoscribe/sonoscribe/internal/queue"
	"github.com/sonoscribe/sonoscribe/internal/segment"
	"github.com/sonoscribe/sonoscribe/internal/summarize"
)

// prober reports the duration of an audio file.
type prober interface {
	Duration(ctx context.Context, audioPath string) (time.Duration, error)
}

// transcriber turns audio chunks into per-chunk segment lists.
type transcriber interface {
	TranscribeAll(ctx context.Context, chunks []audio.Chunk, opts engine.Options) ([][]segment.Segment, string, error)
}

// reformatter polishes raw transcript text. It never fails; on trouble it
// returns its input.
type reformatter interface {
	Reformat(ctx context.Context, text string) string
}

var _ prober = (*audio.DurationProbe)(nil)
var _ transcriber = (*engine.Pool)(nil)

// Orchestrator processes one claimed job end to end.
type Orchestrator struct {
	probe      prober
	splitter   audio.Splitter
	pool       transcriber
	reformat   reformatter
	summarizer summarize.Summarizer
	overlap    time.Duration
	language   string
	logger     *slog.Logger
	cleanup    func([]audio.Chunk) error
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLanguage sets an optional language hint forwarded to transcription.
func WithLanguage(lang string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.language = lang
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// withCleanup replaces chunk cleanup (for testing).
func withCleanup(fn func([]audio.Chunk) error) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cleanup = fn
	}
}

// NewOrchestrator wires the pipeline stages together. overlap must match
// the splitter's policy; the merger uses it to locate chunk boundaries.
func NewOrchestrator(
	probe prober,
	splitter audio.Splitter,
	pool transcriber,
	reformat reformatter,
	summarizer summarize.Summarizer,
	overlap time.Duration,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		probe:      probe,
		splitter:   splitter,
		pool:       pool,
		reformat:   reformat,
		summarizer: summarizer,
		overlap:    overlap,
		logger:     slog.Default(),
		cleanup:    audio.CleanupChunks,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs one job through the pipeline and returns its result. A
// returned error means the job must be failed: transcription problems are
// final here, there is no partial success and no per-chunk retry. Reformat
// and summary problems degrade the result instead of failing it.
func (o *Orchestrator) Process(ctx context.Context, job queue.Job) (queue.Result, error) {
	log := o.logger.With("job_id", job.ID, "audio", job.AudioRef)

	duration, err := o.probe.Duration(ctx, job.AudioRef)
	if err != nil {
		return queue.Result{}, fmt.Errorf("probe duration: %w", err)
	}
	log.Info("audio probed", "duration", format.Duration(duration))

	chunks, err := o.splitter.Split(ctx, job.AudioRef, duration)
	if err != nil {
		return queue.Result{}, fmt.Errorf("split audio: %w", err)
	}
	defer func() {
		if err := o.cleanup(chunks); err != nil {
			log.Warn("failed to remove chunk files", "error", err)
		}
	}()
	log.Info("audio split", "chunks", len(chunks))

	segments, language, err := o.pool.TranscribeAll(ctx, chunks, engine.Options{
		Language: o.language,
	})
	if err != nil {
		return queue.Result{}, fmt.Errorf("transcribe: %w", err)
	}

	transcript := segment.Merge(segments, o.overlap)
	log.Info("chunks merged",
		"algorithm", segment.AlgorithmFor(len(chunks)),
		"segments", len(transcript.Segments))

	formatted := o.reformat.Reformat(ctx, transcript.Text)

	summary := ""
	if o.summarizer != nil {
		summary, err = o.summarizer.Summarize(ctx, formatted)
		if err != nil {
			log.Warn("summary unavailable", "error", err)
			summary = ""
		}
	}

	return queue.Result{
		Segments:      queue.WireSegments(transcript.Segments),
		Text:          transcript.Text,
		FormattedText: formatted,
		Summary:       summary,
		Language:      language,
		Duration:      duration.Seconds(),
	}, nil
}
