package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory job arena. All state transitions are serialized
// under one mutex, which makes claim a true compare-and-set: exactly one
// worker can win the pending -> processing transition for a job.
type Store struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	order      []string // creation order, for FIFO pending polls
	heartbeats map[string]Heartbeat
	clock      func() time.Time
}

// Heartbeat is the last advisory liveness signal seen from a worker.
type Heartbeat struct {
	WorkerID   string    `json:"worker_id"`
	ActiveJobs int       `json:"active_jobs"`
	SeenAt     time.Time `json:"seen_at"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source (for testing).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:       make(map[string]*Job),
		heartbeats: make(map[string]Heartbeat),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new pending job for an audio reference and returns it.
// Jobs are only ever created by submission collaborators (API layer, spool);
// workers never create jobs.
func (s *Store) Create(audioRef string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		AudioRef:  audioRef,
		Status:    StatusPending,
		CreatedAt: s.clock(),
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return *job
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *job, nil
}

// Pending returns up to limit pending jobs, oldest first.
func (s *Store) Pending(limit int) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Job
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if job := s.jobs[id]; job.Status == StatusPending {
			out = append(out, *job)
		}
	}
	return out
}

// Claim atomically moves a pending job to processing for workerID.
// Exactly one concurrent claimer wins; every loser gets ErrAlreadyClaimed.
func (s *Store) Claim(id, workerID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != StatusPending {
		return Job{}, fmt.Errorf("%w: job %s is %s (worker %s)",
			ErrAlreadyClaimed, id, job.Status, job.WorkerID)
	}

	now := s.clock()
	job.Status = StatusProcessing
	job.WorkerID = workerID
	job.StartedAt = &now
	return *job, nil
}

// Complete moves a processing job to completed and stores its result.
// Rejected with ErrInvalidTransition if the job is not processing.
func (s *Store) Complete(id string, result Result) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.processingJob(id, "complete")
	if err != nil {
		return Job{}, err
	}

	now := s.clock()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = &result
	if job.StartedAt != nil {
		job.ProcessingSeconds = now.Sub(*job.StartedAt).Seconds()
	}
	return *job, nil
}

// Fail moves a processing job to failed and records the error detail.
// Rejected with ErrInvalidTransition if the job is not processing.
func (s *Store) Fail(id, message string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.processingJob(id, "fail")
	if err != nil {
		return Job{}, err
	}

	now := s.clock()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = message
	if job.StartedAt != nil {
		job.ProcessingSeconds = now.Sub(*job.StartedAt).Seconds()
	}
	return *job, nil
}

// processingJob returns the job if it is currently processing.
// Callers must hold s.mu.
func (s *Store) processingJob(id, op string) (*Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: cannot %s job %s in state %s",
			ErrInvalidTransition, op, id, job.Status)
	}
	return job, nil
}

// RecordHeartbeat stores a worker's advisory liveness signal.
// Heartbeats never affect job state.
func (s *Store) RecordHeartbeat(workerID string, activeJobs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heartbeats[workerID] = Heartbeat{
		WorkerID:   workerID,
		ActiveJobs: activeJobs,
		SeenAt:     s.clock(),
	}
}

// Heartbeats returns the last signal seen from each worker.
func (s *Store) Heartbeats() []Heartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Heartbeat, 0, len(s.heartbeats))
	for _, hb := range s.heartbeats {
		out = append(out, hb)
	}
	return out
}

// SweepStuck resets processing jobs whose claim is older than timeout back
// to pending, incrementing their retry count. This recovers jobs held by
// crashed workers; live workers are expected to finish well inside the
// timeout. Returns the ids of reset jobs.
func (s *Store) SweepStuck(timeout time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var reset []string
	for _, job := range s.jobs {
		if job.Status != StatusProcessing || job.StartedAt == nil {
			continue
		}
		if now.Sub(*job.StartedAt) < timeout {
			continue
		}
		job.Status = StatusPending
		job.WorkerID = ""
		job.StartedAt = nil
		job.RetryCount++
		reset = append(reset, job.ID)
	}
	return reset
}

// PurgeResults drops result payloads of terminal jobs older than retention.
// Job metadata is kept for audit; only the large payload is released.
// Returns the number of purged payloads.
func (s *Store) PurgeResults(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	purged := 0
	for _, job := range s.jobs {
		if !job.Status.Terminal() || job.Result == nil || job.CompletedAt == nil {
			continue
		}
		if now.Sub(*job.CompletedAt) < retention {
			continue
		}
		job.Result = nil
		purged++
	}
	return purged
}

// RunSweeper periodically resets stuck processing jobs and purges consumed
// result payloads until ctx is cancelled. This is the store-side recovery
// loop; workers play no part in it.
func (s *Store) RunSweeper(ctx context.Context, interval, stuckTimeout, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reset := s.SweepStuck(stuckTimeout); len(reset) > 0 {
				logger.Warn("reset stuck jobs to pending", "jobs", reset)
			}
			if purged := s.PurgeResults(retention); purged > 0 {
				logger.Debug("purged consumed result payloads", "count", purged)
			}
		}
	}
}
