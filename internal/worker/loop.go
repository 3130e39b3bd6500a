package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/queue"
)

const (
	defaultMaxJobs           = 2
	defaultPollInterval      = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

// processor runs one claimed job through the pipeline.
type processor interface {
	Process(ctx context.Context, job queue.Job) (queue.Result, error)
}

var _ processor = (*Orchestrator)(nil)

// Worker polls the store for pending jobs and processes claimed ones in
// the background. Discovery never waits for processing: a slow job only
// occupies its slot, polling continues for the rest of the capacity.
type Worker struct {
	id        string
	protocol  queue.Protocol
	processor processor
	logger    *slog.Logger

	maxJobs           int
	pollInterval      time.Duration
	heartbeatInterval time.Duration

	active atomic.Int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMaxJobs caps how many jobs are processed at once.
func WithMaxJobs(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxJobs = n
		}
	}
}

// WithPollInterval sets how often the store is polled for pending jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithHeartbeatInterval sets how often advisory liveness is reported.
func WithHeartbeatInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.heartbeatInterval = d
		}
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker creates a Worker identified as id against the given queue.
func NewWorker(id string, protocol queue.Protocol, proc processor, opts ...WorkerOption) *Worker {
	w := &Worker{
		id:                id,
		protocol:          protocol,
		processor:         proc,
		logger:            slog.Default(),
		maxJobs:           defaultMaxJobs,
		pollInterval:      defaultPollInterval,
		heartbeatInterval: defaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls and processes until ctx is cancelled, then waits for in-flight
// jobs to report their outcome.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"worker_id", w.id, "max_jobs", w.maxJobs)

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(w.heartbeatInterval)
	defer heartbeat.Stop()

	var wg sync.WaitGroup
	w.pollOnce(ctx, &wg)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, waiting for in-flight jobs",
				"active", w.active.Load())
			wg.Wait()
			return nil

		case <-poll.C:
			w.pollOnce(ctx, &wg)

		case <-heartbeat.C:
			if err := w.protocol.Heartbeat(ctx, w.id, int(w.active.Load())); err != nil {
				// Advisory only. The store's sweep recovers jobs if we
				// are actually gone.
				w.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context, wg *sync.WaitGroup) {
	capacity := w.maxJobs - int(w.active.Load())
	if capacity <= 0 {
		return
	}

	jobs, err := w.protocol.Poll(ctx, capacity)
	if err != nil {
		w.logger.Warn("poll failed", "error", err)
		return
	}

	for _, job := range jobs {
		claimed, err := w.protocol.Claim(ctx, job.ID, w.id)
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			// Another worker got there first. Normal under contention.
			w.logger.Debug("job taken by another worker", "job_id", job.ID)
			continue
		}
		if err != nil {
			w.logger.Warn("claim failed", "job_id", job.ID, "error", err)
			continue
		}

		w.active.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer w.active.Add(-1)
			w.runJob(ctx, claimed)
		}()
	}
}

func (w *Worker) runJob(ctx context.Context, job queue.Job) {
	log := w.logger.With("job_id", job.ID, "worker_id", w.id)
	log.Info("processing job", "audio", job.AudioRef)

	// In-flight jobs are insulated from shutdown: the first signal only
	// stops discovery while claimed jobs drain to a reported outcome
	// (Run waits for them). Aborting here would record a terminal
	// failure for work the store's sweep could otherwise requeue. A
	// forced exit kills the process and leaves the job processing for
	// the sweep.
	jobCtx := context.WithoutCancel(ctx)
	result, err := w.processor.Process(jobCtx, job)

	reportCtx, cancel := context.WithTimeout(jobCtx, 30*time.Second)
	defer cancel()

	if err != nil {
		log.Error("job failed", "error", err)
		if failErr := w.protocol.Fail(reportCtx, job.ID, err.Error()); failErr != nil {
			log.Error("could not report failure", "error", failErr)
		}
		return
	}

	if err := w.protocol.Complete(reportCtx, job.ID, result); err != nil {
		log.Error("could not report completion", "error", err)
		return
	}
	log.Info("job completed", "duration_seconds", result.Duration)
}
