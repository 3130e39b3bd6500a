package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Server exposes the job queue over HTTP. Every mutation maps to one store
// transition; conflicts surface as explicit 409 responses rather than
// blocking, so workers can immediately move on to the next candidate job.
type Server struct {
	store  *Store
	token  string
	logger *slog.Logger

	sweepInterval     time.Duration
	processingTimeout time.Duration
	resultRetention   time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAuthToken requires a bearer token on every request. An empty token
// disables authentication.
func WithAuthToken(token string) ServerOption {
	return func(s *Server) {
		s.token = token
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSweep configures the background recovery loop: how often it runs, how
// long a processing claim may go unfinished before the job is reset to
// pending, and how long completed result payloads are retained.
func WithSweep(interval, processingTimeout, retention time.Duration) ServerOption {
	return func(s *Server) {
		s.sweepInterval = interval
		s.processingTimeout = processingTimeout
		s.resultRetention = retention
	}
}

// NewServer creates a Server backed by store.
func NewServer(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:             store,
		logger:            slog.Default(),
		sweepInterval:     30 * time.Second,
		processingTimeout: 30 * time.Minute,
		resultRetention:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/claim", s.handleClaim).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/fail", s.handleFail).Methods(http.MethodPost)
	api.HandleFunc("/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)
	return r
}

// Run serves the queue API on addr until ctx is cancelled, then shuts down
// gracefully. The stuck-job sweeper runs alongside the listener.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go s.store.RunSweeper(ctx, s.sweepInterval, s.processingTimeout, s.resultRetention, s.logger)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("queue store listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.AudioRef) == "" {
		writeError(w, http.StatusBadRequest, "audio_ref is required")
		return
	}

	job := s.store.Create(req.AudioRef)
	s.logger.Info("job created", "job_id", job.ID, "audio_ref", job.AudioRef)
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != string(StatusPending) {
		writeError(w, http.StatusBadRequest, "only status=pending listings are supported")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs := s.store.Pending(limit)
	if jobs == nil {
		jobs = []Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	job, err := s.store.Claim(mux.Vars(r)["id"], req.WorkerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("job claimed", "job_id", job.ID, "worker_id", req.WorkerID)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.store.Complete(mux.Vars(r)["id"], req.Result)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("job completed", "job_id", job.ID,
		"processing_seconds", job.ProcessingSeconds)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req FailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.store.Fail(mux.Vars(r)["id"], req.Error)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Warn("job failed", "job_id", job.ID, "error", job.Error)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	s.store.RecordHeartbeat(req.WorkerID, req.ActiveJobs)
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
