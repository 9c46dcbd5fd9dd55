// Package server exposes the engine over HTTP.
//
//	POST /runs                {user_input, preferences} -> 202 {run_id}
//	GET  /runs                stored runs
//	GET  /runs/{id}           plan state; ?wait=1 blocks until the run settles
//	POST /runs/{id}/resume    {status, feedback} -> 202
//	GET  /reviews             runs paused for review
//	GET  /archive?q=&limit=   archived plans
//	GET  /metrics             prometheus metrics
//	GET  /healthz
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/review"
	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/store"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

const shutdownTimeout = 10 * time.Second

// Engine is the part of *engine.Engine the server calls.
type Engine interface {
	Submit(ctx context.Context, userInput string, prefs state.Preferences) (string, error)
	GetState(ctx context.Context, runID string) (state.Snapshot, error)
	Wait(ctx context.Context, runID string) (state.Snapshot, error)
	Resume(ctx context.Context, runID string, d review.Decision) error
	PendingReviews() []string
	Runs(ctx context.Context) ([]store.Summary, error)
	SearchArchive(ctx context.Context, query string, limit int) ([]store.ArchiveEntry, error)
}

// Options configures a Server.
type Options struct {
	Engine Engine
	// Metrics serves /metrics. Nil omits the endpoint.
	Metrics http.Handler
	Logger  *logging.Logger
}

// Server is the HTTP API.
type Server struct {
	engine  Engine
	metrics http.Handler
	logger  *logging.Logger
	mux     *http.ServeMux
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		engine:  opts.Engine,
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger).With("component", "http"),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /runs", s.handleSubmit)
	s.mux.HandleFunc("GET /runs", s.handleList)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGet)
	s.mux.HandleFunc("POST /runs/{id}/resume", s.handleResume)
	s.mux.HandleFunc("GET /reviews", s.handleReviews)
	s.mux.HandleFunc("GET /archive", s.handleArchive)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewConfigError("server.addr", "listen on "+addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// SubmitRequest is the body of POST /runs.
type SubmitRequest struct {
	UserInput   string         `json:"user_input"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// SubmitResponse is returned by POST /runs.
type SubmitResponse struct {
	RunID string `json:"run_id"`
}

// ResumeRequest is the body of POST /runs/{id}/resume.
type ResumeRequest struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// ResumeResponse is returned by POST /runs/{id}/resume.
type ResumeResponse struct {
	RunID  string               `json:"run_id"`
	Status state.ApprovalStatus `json:"status"`
}

// ArchiveResponse is returned by GET /archive.
type ArchiveResponse struct {
	Entries []store.ArchiveEntry `json:"entries"`
	Total   int                  `json:"total"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prefs, err := state.DecodePreferences(req.Preferences)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid preferences: "+err.Error())
		return
	}
	id, err := s.engine.Submit(r.Context(), req.UserInput, prefs)
	if err != nil {
		s.fail(w, "submit", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := s.engine.Runs(r.Context())
	if err != nil {
		s.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	get := s.engine.GetState
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		get = s.engine.Wait
	}
	snap, err := get(r.Context(), id)
	if err != nil {
		s.fail(w, "get state", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := review.ParseDecision(req.Status, req.Feedback)
	if err != nil {
		s.fail(w, "resume", err)
		return
	}
	if err := s.engine.Resume(r.Context(), id, d); err != nil {
		s.fail(w, "resume", err)
		return
	}
	s.logger.WithRun(id).Info("run resumed via http", "status", string(d.Status))
	writeJSON(w, http.StatusAccepted, ResumeResponse{RunID: id, Status: d.Status})
}

func (s *Server) handleReviews(w http.ResponseWriter, _ *http.Request) {
	ids := s.engine.PendingReviews()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"run_ids": ids})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid limit: must be 1-1000")
			return
		}
		limit = n
	}
	entries, err := s.engine.SearchArchive(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.fail(w, "search archive", err)
		return
	}
	if entries == nil {
		entries = []store.ArchiveEntry{}
	}
	writeJSON(w, http.StatusOK, ArchiveResponse{Entries: entries, Total: len(entries)})
}

// fail maps an engine error to a status code.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var (
		nf *errors.NotFoundError
		ve *errors.ValidationError
	)
	switch {
	case errors.Is(err, errors.ErrRunNotFound), errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errors.ErrInvalidDecision), errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errors.ErrRunNotPaused), errors.Is(err, errors.ErrRunTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		s.logger.Error("request failed", "op", op, "error", err.Error())
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
