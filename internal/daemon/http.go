package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/agentgraph/orchestrator/internal/hitl"
	"github.com/agentgraph/orchestrator/internal/streaming"
	"github.com/agentgraph/orchestrator/internal/usage"
	"github.com/agentgraph/orchestrator/pkg/events"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the App over HTTP: run submission + SSE streaming,
// HITL response submission, usage summaries, and health/metrics.
type Server struct {
	app *App

	mu   sync.Mutex
	runs map[string]*Run // thread_id -> in-flight run, for the stream/respond endpoints
}

// NewServer builds the HTTP handler tree for app.
func NewServer(app *App) *Server {
	return &Server{app: app, runs: make(map[string]*Run)}
}

// Handler returns the composed net/http handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/runs", s.handleCreateRun)
	mux.HandleFunc("GET /v1/runs/{thread_id}/events", s.handleStreamRun)
	mux.HandleFunc("POST /v1/interrupts/{thread_id}/{interrupt_id}/respond", s.handleRespondInterrupt)
	mux.HandleFunc("GET /v1/usage", s.handleUsageSummary)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type createRunRequest struct {
	ThreadID     string `json:"thread_id"`
	Query        string `json:"query"`
	ExplicitMode string `json:"explicit_mode"`
	UserID       string `json:"user_id"`
}

type createRunResponse struct {
	ThreadID string `json:"thread_id"`
}

// handleCreateRun starts a run in the background and returns immediately;
// the caller streams its events from handleStreamRun.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	run := s.app.NewRun(req.ThreadID, req.Query, req.ExplicitMode, req.UserID)

	s.mu.Lock()
	s.runs[req.ThreadID] = run
	s.mu.Unlock()

	go func() {
		ctx := hitl.WithManager(context.Background(), run.HITL, req.ThreadID)
		ctx = usage.WithTracker(ctx, run.Usage)
		if err := run.Supervisor.Run(ctx, run.State); err != nil {
			run.Bus.Emit(events.Err(err.Error(), "supervisor", "", ""))
		}
		run.Bus.Close()

		s.mu.Lock()
		delete(s.runs, req.ThreadID)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(createRunResponse{ThreadID: req.ThreadID})
}

func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	s.mu.Lock()
	run, ok := s.runs[threadID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "no in-flight run for thread_id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writer := httpSSEWriter{w: w, flusher: flusher}
	userID := r.URL.Query().Get("user_id")

	if err := s.app.Bridge.Serve(r.Context(), run.Bus, writer, userID, threadID); err != nil {
		s.app.Logger.Warn("streaming run ended with error", "thread_id", threadID, "error", err)
	}
}

type respondInterruptRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

func (s *Server) handleRespondInterrupt(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	interruptID := r.PathValue("interrupt_id")

	var req respondInterruptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	run, ok := s.runs[threadID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "no in-flight run for thread_id", http.StatusNotFound)
		return
	}

	resp := hitl.Response{Action: req.Action, Value: req.Value, InterruptID: interruptID}
	if err := run.HITL.SubmitResponse(r.Context(), threadID, resp); err != nil {
		http.Error(w, fmt.Sprintf("submitting response: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	summary := usage.GetUsageSummary(r.URL.Query().Get("conversation_id"), r.URL.Query().Get("user_id"))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

// httpSSEWriter adapts http.ResponseWriter + http.Flusher to
// streaming.Writer.
type httpSSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (w httpSSEWriter) WriteString(s string) (int, error) { return fmt.Fprint(w.w, s) }
func (w httpSSEWriter) Flush() error                       { w.flusher.Flush(); return nil }

var _ streaming.Writer = httpSSEWriter{}
