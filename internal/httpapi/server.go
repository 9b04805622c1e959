// Package httpapi exposes one machine instance over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/logging"
	"github.com/comalice/chartkit/internal/primitives"
	"github.com/comalice/chartkit/internal/production"
)

// Server serializes all HTTP access to a single Machine. The machine must
// not be driven from anywhere else while the server is running.
type Server struct {
	mu         sync.Mutex
	machine    *core.Machine
	visualizer *production.DefaultVisualizer
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the metrics source for GET /metrics. Defaults to the
// global Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// EventRequest is the body of POST /events.
type EventRequest struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EventResponse is returned by POST /events. Error is set when the
// macrostep failed; Report then holds what was applied before the failure.
type EventResponse struct {
	Report  core.TransitionReport `json:"report"`
	Changed bool                  `json:"changed"`
	Error   string                `json:"error,omitempty"`
}

// StateResponse is returned by GET /state.
type StateResponse struct {
	MachineID     string              `json:"machineID"`
	Definition    string              `json:"definition"`
	Version       string              `json:"version"`
	Phase         string              `json:"phase"`
	Started       bool                `json:"started"`
	Configuration []string            `json:"configuration"`
	Active        []string            `json:"active"`
	Context       map[string]any      `json:"context"`
	History       map[string][]string `json:"history,omitempty"`
}

// NewServer wraps m.
func NewServer(m *core.Machine, opts ...Option) *Server {
	s := &Server{
		machine:    m,
		visualizer: production.NewVisualizer(),
		gatherer:   prometheus.DefaultGatherer,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the HTTP handler for m.
func NewHandler(m *core.Machine, opts ...Option) http.Handler {
	return NewServer(m, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Post("/events", s.postEvent)
	r.Get("/state", s.getState)
	r.Get("/can/{event}", s.getCan)
	r.Get("/matches", s.getMatches)
	r.Get("/graph", s.getGraph)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Type == "" {
		http.Error(w, "Missing event type", http.StatusBadRequest)
		return
	}
	if body.Type == primitives.AlwaysEvent {
		http.Error(w, fmt.Sprintf("Event type %q is reserved", body.Type), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	report, err := s.machine.Send(r.Context(), primitives.NewEvent(body.Type, body.Data))
	s.mu.Unlock()

	resp := EventResponse{Report: report, Changed: report.Changed()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
		s.logger.Warn("event failed", "event", body.Type, "error", err)
	} else {
		s.logger.Debug("event processed", "event", body.Type, "configuration", report.Configuration)
	}
	s.writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, core.ErrStopped):
		return http.StatusGone
	case errors.Is(err, core.ErrReentrantSend):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrGuardFailed), errors.Is(err, core.ErrActionFailed), errors.Is(err, core.ErrInfiniteLoop):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	snap := s.machine.Snapshot()
	resp := StateResponse{
		MachineID:     s.machine.ID(),
		Definition:    snap.Definition,
		Version:       snap.Version,
		Phase:         s.machine.Phase().String(),
		Started:       s.machine.Started(),
		Configuration: snap.Configuration,
		Active:        s.machine.ActiveStates(),
		Context:       snap.Context,
		History:       snap.History,
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getCan(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	s.mu.Lock()
	can := s.machine.Can(event)
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{"event": event, "can": can})
}

func (s *Server) getMatches(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		http.Error(w, "Missing pattern", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	matches := s.machine.Matches(pattern)
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]any{"pattern": pattern, "matches": matches})
}

// getGraph renders the definition with the active states highlighted;
// format is dot, mermaid or json (default).
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.machine.Definition().Config()
	active := s.machine.ActiveStates()
	s.mu.Unlock()

	switch format := r.URL.Query().Get("format"); format {
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write([]byte(s.visualizer.ExportDOT(cfg, active)))
	case "mermaid":
		out, err := s.visualizer.ExportMermaid(cfg, active)
		if err != nil {
			http.Error(w, fmt.Sprintf("Graph error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(out))
	case "", "json":
		data, err := s.visualizer.ExportJSON(cfg)
		if err != nil {
			http.Error(w, fmt.Sprintf("Graph error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		http.Error(w, fmt.Sprintf("Unknown format %q", format), http.StatusBadRequest)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}
