package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// App is the application surface the dev server exposes.
type App interface {
	RenderPage(ctx context.Context, w io.Writer, fragment string) error
	Navigate(ctx context.Context, fragment string) (domain.Outcome, error)
	SetContext(ctx context.Context, patch domain.Context) error
	Context(ctx context.Context) domain.Context
}

// Event stream topics.
const (
	TopicNavigation = "navigation"
	TopicContext    = "context"
)

// Server serves component markup, server-rendered pages, the context API
// and a stream of lifecycle events.
type Server struct {
	App     App
	Streams *StreamManager

	components fs.FS
	metrics    http.Handler
	version    string
	logger     *slog.Logger

	// mu serializes requests touching the application's single document.
	mu sync.Mutex
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithComponents serves the component tree under /components/.
func WithComponents(fsys fs.FS) ServerOption {
	return func(s *Server) {
		s.components = fsys
	}
}

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithStreams shares an event stream created before the server, typically
// so its hooks can be handed to the application first.
func WithStreams(sm *StreamManager) ServerOption {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server for app.
func NewServer(app App, opts ...ServerOption) *Server {
	s := &Server{
		App:     app,
		Streams: NewStreamManager(),
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/", s.GetPage)
	r.Get("/pages/{page}", s.GetPage)
	r.Get("/context", s.GetContext)
	r.Post("/api/context", s.PostContext)
	r.Post("/navigate", s.PostNavigate)
	r.Get("/events", s.SubscribeEvents)
	if s.components != nil {
		r.Handle("/components/*", http.StripPrefix("/components/", http.FileServer(http.FS(s.components))))
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

// Hooks publishes navigation and render pass events to the event stream.
func (s *Server) Hooks() domain.LifecycleHooks {
	return s.Streams.Hooks()
}

// Hooks publishes navigation and render pass events to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNavigate: func(_ context.Context, ev *domain.NavigationEvent) {
			sm.publish(TopicNavigation, ev)
		},
		OnPassComplete: func(_ context.Context, ev *domain.PassEvent) {
			sm.publish(TopicContext, ev)
		},
	}
}

func (sm *StreamManager) publish(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Warn("Event encode failed", "topic", topic, "err", err)
		return
	}
	sm.Broadcast(topic, string(data))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "arbor",
		"version": strings.TrimSpace(s.version),
	})
}

// GetPage handles GET / and GET /pages/{page} with a server-side render.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	fragment := ""
	if page := chi.URLParam(r, "page"); page != "" {
		fragment = domain.PageFragment(page)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if err := s.App.RenderPage(r.Context(), &b, fragment); err != nil {
		status := http.StatusInternalServerError
		if isRetrieval(err) {
			status = http.StatusNotFound
		}
		http.Error(w, fmt.Sprintf("Render error: %v", err), status)
		s.logger.Error("Page render failed", "fragment", fragment, "err", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, b.String())
}

// GetContext handles GET /context. Callable entries are left out.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, encodable(s.App.Context(r.Context())))
}

// PostContext handles POST /api/context, the target of api("context", patch).
// The response uses the {result} / {error} envelope.
func (s *Server) PostContext(w http.ResponseWriter, r *http.Request) {
	var patch domain.Context
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		s.logger.Warn("Context: invalid request body", "err", err)
		return
	}

	s.mu.Lock()
	err := s.App.SetContext(r.Context(), patch)
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		s.logger.Error("Context update failed", "err", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": encodable(s.App.Context(r.Context()))})
}

type navigateRequest struct {
	Fragment string `json:"fragment"`
}

// PostNavigate handles POST /navigate.
func (s *Server) PostNavigate(w http.ResponseWriter, r *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Navigate: invalid request body", "err", err)
		return
	}

	s.mu.Lock()
	outcome, err := s.App.Navigate(r.Context(), body.Fragment)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, fmt.Sprintf("Navigate error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Navigate failed", "fragment", body.Fragment, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome})
}

// SubscribeEvents handles GET /events (SSE). The optional watch parameter
// is a comma-separated list of topics.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var watch map[string]bool
	if v := r.URL.Query().Get("watch"); v != "" {
		watch = make(map[string]bool)
		for _, topic := range strings.Split(v, ",") {
			watch[strings.TrimSpace(topic)] = true
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if watch != nil && !watch[msg.Topic] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Topic, msg.Data)
			flusher.Flush()
		}
	}
}

// Message is one event stream entry.
type Message struct {
	Topic string
	Data  string
}

// StreamManager fans messages out to the active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan Message]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a subscriber and returns its channel and cancel function.
func (sm *StreamManager) Subscribe() (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, 10)
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

// Broadcast sends data to every subscriber, dropping it for slow clients.
func (sm *StreamManager) Broadcast(topic, data string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- Message{Topic: topic, Data: data}:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "topic", topic)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// encodable drops the entries that cannot be JSON-encoded (handlers).
func encodable(c domain.Context) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		if _, err := json.Marshal(v); err == nil {
			out[k] = v
		}
	}
	return out
}

func isRetrieval(err error) bool {
	var re *domain.RetrievalError
	return errors.As(err, &re)
}
