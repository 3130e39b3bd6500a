package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Protocol is the queue surface a worker depends on. Implementations must
// make Claim an atomic compare-and-set: concurrent claims for the same job
// return ErrAlreadyClaimed to every caller but one.
type Protocol interface {
	// Poll returns up to limit pending jobs, oldest first.
	Poll(ctx context.Context, limit int) ([]Job, error)
	// Claim attempts to take ownership of a pending job.
	Claim(ctx context.Context, jobID, workerID string) (Job, error)
	// Complete finishes a processing job with its result.
	Complete(ctx context.Context, jobID string, result Result) error
	// Fail marks a processing job failed with the captured error.
	Fail(ctx context.Context, jobID, message string) error
	// Heartbeat reports advisory worker liveness. Losing heartbeats
	// never fails a job; the store's sweep is the recovery mechanism.
	Heartbeat(ctx context.Context, workerID string, activeJobs int) error
}

// Client talks to a queue store over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientToken sets the bearer token sent on every request.
func WithClientToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the store at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Protocol = (*Client)(nil)

// Submit creates a new pending job for an audio reference. This is the
// producer side of the protocol; workers never call it.
func (c *Client) Submit(ctx context.Context, audioRef string) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodPost, "/api/jobs",
		CreateRequest{AudioRef: audioRef}, &job, ErrInvalidTransition)
	return job, err
}

func (c *Client) Poll(ctx context.Context, limit int) ([]Job, error) {
	path := "/api/jobs?" + url.Values{
		"status": {string(StatusPending)},
		"limit":  {fmt.Sprint(limit)},
	}.Encode()

	var jobs []Job
	if err := c.do(ctx, http.MethodGet, path, nil, &jobs, ErrInvalidTransition); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) Claim(ctx context.Context, jobID, workerID string) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/claim",
		ClaimRequest{WorkerID: workerID}, &job, ErrAlreadyClaimed)
	return job, err
}

func (c *Client) Complete(ctx context.Context, jobID string, result Result) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/complete",
		CompleteRequest{Result: result}, nil, ErrInvalidTransition)
}

func (c *Client) Fail(ctx context.Context, jobID, message string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/fail",
		FailRequest{Error: message}, nil, ErrInvalidTransition)
}

func (c *Client) Heartbeat(ctx context.Context, workerID string, activeJobs int) error {
	return c.do(ctx, http.MethodPost, "/api/heartbeat",
		HeartbeatRequest{WorkerID: workerID, ActiveJobs: activeJobs}, nil, ErrInvalidTransition)
}

// do runs one request. conflictErr is the sentinel a 409 wraps: claiming a
// taken job and completing a non-processing job are both conflicts on the
// wire but mean different things to the caller.
func (c *Client) do(ctx context.Context, method, path string, body, out any, conflictErr error) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp, conflictErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps HTTP rejections back onto the protocol's sentinel errors
// so callers can branch with errors.Is.
func statusError(resp *http.Response, conflictErr error) error {
	var body ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	detail := body.Error
	if detail == "" {
		detail = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", conflictErr, detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
	default:
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, detail)
	}
}
