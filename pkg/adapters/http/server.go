// Package http exposes the latest pass of a driver over a read-only HTTP API.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/table"
)

// Source defines what the server reads. *tendril.Driver implements it.
type Source interface {
	Last() *incremental.PassResult
	Pipeline() *incremental.Pipeline
}

// Server serves the outcome of the last successful pass of a Source.
type Server struct {
	Source   Source
	Streams  *StreamManager
	Gatherer prometheus.Gatherer
	Version  string
	Logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithStreams publishes pass events from sm on /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.Gatherer = g }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// NewHandler creates a new HTTP handler for src.
func NewHandler(src Source, opts ...Option) http.Handler {
	s := &Server{Source: src, Version: "dev", Logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/artifacts", s.ListArtifacts)
	r.Get("/artifacts/*", s.GetArtifact)
	r.Get("/diagnostics", s.ListDiagnostics)
	r.Get("/tables", s.GetTables)
	r.Get("/graph", s.GetGraph)
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.Streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ArtifactInfo describes one generated text without its content.
type ArtifactInfo struct {
	HintName string `json:"hint_name"`
	Size     int    `json:"size"`
}

// TableInfo describes the table of one node in the last pass.
type TableInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        domain.NodeKind `json:"kind"`
	Cardinality string          `json:"cardinality"`
	Upstream    []string        `json:"upstream"`
	Table       *table.Summary  `json:"table,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"app":      "tendril-http",
		"version":  s.Version,
		"pipeline": s.Source.Pipeline().Name(),
	}
	if last := s.Source.Last(); last != nil {
		resp["pass_id"] = last.PassID
		resp["stats"] = last.Stats
	}
	s.writeJSON(w, resp)
}

// ListArtifacts handles the GET /artifacts request.
func (s *Server) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	last, ok := s.last(w)
	if !ok {
		return
	}
	out := make([]ArtifactInfo, len(last.Texts))
	for i, t := range last.Texts {
		out[i] = ArtifactInfo{HintName: t.HintName, Size: len(t.Text)}
	}
	s.writeJSON(w, out)
}

// GetArtifact handles the GET /artifacts/{hint} request. Hint names may contain slashes.
func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request) {
	last, ok := s.last(w)
	if !ok {
		return
	}
	hint := chi.URLParam(r, "*")
	idx := slices.IndexFunc(last.Texts, func(t domain.GeneratedText) bool { return t.HintName == hint })
	if idx < 0 {
		http.Error(w, fmt.Sprintf("Artifact %q not found", hint), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Tendril-Pass", last.PassID)
	_, _ = w.Write([]byte(last.Texts[idx].Text))
}

// ListDiagnostics handles the GET /diagnostics request. ?severity= filters the list.
func (s *Server) ListDiagnostics(w http.ResponseWriter, r *http.Request) {
	last, ok := s.last(w)
	if !ok {
		return
	}
	out := []domain.Diagnostic{}
	sev := domain.Severity(r.URL.Query().Get("severity"))
	for _, d := range last.Diagnostics {
		if sev == "" || d.Severity == sev {
			out = append(out, d)
		}
	}
	s.writeJSON(w, out)
}

// GetTables handles the GET /tables request.
func (s *Server) GetTables(w http.ResponseWriter, r *http.Request) {
	last, ok := s.last(w)
	if !ok {
		return
	}
	summaries := last.State.Summaries()
	nodes := s.Source.Pipeline().Nodes()
	out := make([]TableInfo, 0, len(nodes))
	for _, n := range nodes {
		info := describe(n)
		if sum, ok := summaries[n.ID()]; ok {
			info.Table = &sum
		}
		out = append(out, info)
	}
	s.writeJSON(w, out)
}

// GetGraph handles the GET /graph request: Mermaid by default, JSON with ?format=json.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	nodes := s.Source.Pipeline().Nodes()
	if r.URL.Query().Get("format") == "json" {
		out := make([]TableInfo, len(nodes))
		for i, n := range nodes {
			out[i] = describe(n)
		}
		s.writeJSON(w, out)
		return
	}

	var overlay *graph.GraphOverlay
	if last := s.Source.Last(); last != nil {
		overlay = graph.OverlayOf(last.State)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(nodes, overlay)))
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: pass\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) last(w http.ResponseWriter) (*incremental.PassResult, bool) {
	last := s.Source.Last()
	if last == nil {
		http.Error(w, "No pass has completed yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return last, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func describe(n incremental.AnyNode) TableInfo {
	info := TableInfo{
		ID:          n.ID().String(),
		Name:        n.Name(),
		Kind:        n.Kind(),
		Cardinality: n.Cardinality().String(),
		Upstream:    []string{},
	}
	for _, up := range n.Upstream() {
		info.Upstream = append(info.Upstream, up.Name())
	}
	return info
}

// PassMessage is the payload of a pass event.
type PassMessage struct {
	PassID   string        `json:"pass_id"`
	Duration time.Duration `json:"duration"`
	Canceled bool          `json:"canceled,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

// Hooks broadcasts the end of every pass.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassEnd: func(_ context.Context, e *domain.PassEvent) {
			msg := PassMessage{PassID: e.PassID, Duration: e.Duration, Canceled: e.Canceled}
			if e.Err != nil {
				msg.Error = e.Err.Error()
			}
			if b, err := json.Marshal(msg); err == nil {
				sm.Broadcast(string(b))
			}
		},
	}
}
