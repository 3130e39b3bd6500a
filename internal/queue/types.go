// Package queue implements the job queue protocol: the wire contract and
// state machine workers use to discover, claim, and complete or fail
// transcription jobs. The store is the single source of truth; workers hold
// no cross-process mutable state.
package queue

import (
	"time"

	"github.com/sonoscribe/sonoscribe/internal/segment"
)

// Status is the lifecycle stage of a job.
// Transitions are monotonic: pending -> processing -> {completed, failed}.
type Status string

// Job lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Segment is the wire form of one transcript segment, with timestamps in
// decimal seconds on the original job timeline.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the payload a worker submits on completion.
type Result struct {
	Segments      []Segment `json:"segments"`
	Text          string    `json:"text"`
	FormattedText string    `json:"formatted_text,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Language      string    `json:"language,omitempty"`
	Duration      float64   `json:"duration"` // audio duration in seconds
}

// Job is one transcription request tracked by the store.
type Job struct {
	ID          string     `json:"id"`
	AudioRef    string     `json:"audio_ref"`
	Status      Status     `json:"status"`
	WorkerID    string     `json:"worker_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`

	// ProcessingSeconds is the wall-clock time spent in processing,
	// recorded when the job reaches a terminal state.
	ProcessingSeconds float64 `json:"processing_seconds,omitempty"`

	// Result holds the completed payload until it is purged.
	Result *Result `json:"result,omitempty"`
}

// Request and response shapes for the HTTP protocol.
type (
	// CreateRequest creates a pending job for an audio reference.
	CreateRequest struct {
		AudioRef string `json:"audio_ref"`
	}

	// ClaimRequest asks to move a pending job to processing.
	ClaimRequest struct {
		WorkerID string `json:"worker_id"`
	}

	// CompleteRequest finishes a processing job with its result.
	CompleteRequest struct {
		Result Result `json:"result"`
	}

	// FailRequest marks a processing job failed with the captured error.
	FailRequest struct {
		Error string `json:"error"`
	}

	// HeartbeatRequest is an advisory liveness signal from a worker.
	// It has no effect on job state.
	HeartbeatRequest struct {
		WorkerID   string `json:"worker_id"`
		ActiveJobs int    `json:"active_jobs"`
	}

	// ErrorResponse carries the explicit rejection reason.
	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// WireSegments converts timeline segments to their wire form.
func WireSegments(segments []segment.Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = Segment{
			Start: s.Start.Seconds(),
			End:   s.End.Seconds(),
			Text:  s.Text,
		}
	}
	return out
}
