package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/net/html"
)

// ContextURI is the resource exposing the current context.
const ContextURI = "arbor://context"

// PageResponse is the structured result shared by the page tools.
type PageResponse struct {
	Route    domain.RouteState `json:"route" jsonschema_description:"The page currently shown and the one before it"`
	Outcome  domain.Outcome    `json:"outcome,omitempty" jsonschema_description:"How the last navigation ended: navigated, silent, vetoed or ignored"`
	Document string            `json:"document,omitempty" jsonschema_description:"The rendered document markup"`
	Context  map[string]any    `json:"context" jsonschema_description:"The current context without handler entries"`
}

// SignalResponse is the structured result of send_signal.
type SignalResponse struct {
	Signal           string         `json:"signal" jsonschema_description:"The signal that was fired"`
	DefaultPrevented bool           `json:"default_prevented" jsonschema_description:"Whether a handler suppressed the default behavior"`
	Context          map[string]any `json:"context" jsonschema_description:"The context after queued patches were applied"`
}

// App is the application surface exposed to agents.
type App interface {
	RenderPage(ctx context.Context, w io.Writer, fragment string) error
	Render(w io.Writer) error
	Navigate(ctx context.Context, fragment string) (domain.Outcome, error)
	Route() domain.RouteState
	SetContext(ctx context.Context, patch domain.Context) error
	Context(ctx context.Context) domain.Context
	Query(selector string) (*html.Node, error)
	Trigger(ctx context.Context, node *html.Node, name string, detail any) (*domain.Signal, error)
}

// Server exposes an App as an MCP server.
type Server struct {
	app       App
	version   string
	logger    *slog.Logger
	mcpServer *server.MCPServer

	// mu serializes tool calls touching the application's single document.
	mu sync.Mutex
}

// Option configures the Server.
type Option func(*Server)

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server for app.
func NewServer(app App, opts ...Option) *Server {
	s := &Server{
		app:     app,
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("arbor-mcp", s.version)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	renderTool := mcp.NewTool("render_page",
		mcp.WithDescription("Render the document. With a fragment, navigates there first; otherwise renders the current page."),
		mcp.WithString("fragment", mcp.Description("Fragment to navigate to, such as #page=about (optional)")),
		mcp.WithOutputSchema[PageResponse](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRenderPage))

	navigateTool := mcp.NewTool("navigate",
		mcp.WithDescription("Navigate to a fragment and report the outcome."),
		mcp.WithString("fragment", mcp.Required(), mcp.Description("Fragment to navigate to")),
		mcp.WithOutputSchema[PageResponse](),
	)
	s.mcpServer.AddTool(navigateTool, mcp.NewStructuredToolHandler(s.handleNavigate))

	contextTool := mcp.NewTool("set_context",
		mcp.WithDescription("Merge a patch into the context and re-render the document."),
		mcp.WithString("context", mcp.Required(), mcp.Description("JSON object merged into the context")),
		mcp.WithOutputSchema[PageResponse](),
	)
	s.mcpServer.AddTool(contextTool, mcp.NewStructuredToolHandler(s.handleSetContext))

	signalTool := mcp.NewTool("send_signal",
		mcp.WithDescription("Fire a signal (e.g., click, submit) on the first element matching a selector."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the target element")),
		mcp.WithString("signal", mcp.Required(), mcp.Description("Signal name")),
		mcp.WithString("detail", mcp.Description("JSON payload carried by the signal (optional)")),
		mcp.WithOutputSchema[SignalResponse](),
	)
	s.mcpServer.AddTool(signalTool, mcp.NewStructuredToolHandler(s.handleSignal))
}

func (s *Server) handleRenderPage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PageResponse, error) {
	fragment, _ := args["fragment"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	var err error
	if fragment != "" {
		err = s.app.RenderPage(ctx, &b, fragment)
	} else {
		err = s.app.Render(&b)
	}
	if err != nil {
		return PageResponse{}, fmt.Errorf("render failed: %w", err)
	}
	resp := s.page(ctx, "")
	resp.Document = b.String()
	return resp, nil
}

func (s *Server) handleNavigate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PageResponse, error) {
	fragment, _ := args["fragment"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.app.Navigate(ctx, fragment)
	if err != nil {
		s.logger.Error("MCP navigate failed", "fragment", fragment, "err", err)
		return PageResponse{}, fmt.Errorf("navigate failed: %w", err)
	}
	return s.page(ctx, outcome), nil
}

func (s *Server) handleSetContext(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PageResponse, error) {
	raw, _ := args["context"].(string)
	var patch domain.Context
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return PageResponse{}, fmt.Errorf("context must be a JSON object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.app.SetContext(ctx, patch); err != nil {
		return PageResponse{}, fmt.Errorf("context update failed: %w", err)
	}
	return s.page(ctx, ""), nil
}

func (s *Server) handleSignal(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SignalResponse, error) {
	selector, _ := args["selector"].(string)
	name, _ := args["signal"].(string)

	var detail any
	if raw, ok := args["detail"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &detail); err != nil {
			return SignalResponse{}, fmt.Errorf("detail must be JSON: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.app.Query(selector)
	if err != nil {
		return SignalResponse{}, fmt.Errorf("query failed: %w", err)
	}
	if node == nil {
		return SignalResponse{}, fmt.Errorf("no element matches %q", selector)
	}
	sig, err := s.app.Trigger(ctx, node, name, detail)
	if err != nil {
		s.logger.Error("MCP signal failed", "selector", selector, "signal", name, "err", err)
		return SignalResponse{}, fmt.Errorf("signal failed: %w", err)
	}
	return SignalResponse{
		Signal:           sig.Name,
		DefaultPrevented: sig.DefaultPrevented(),
		Context:          encodable(s.app.Context(ctx)),
	}, nil
}

func (s *Server) page(ctx context.Context, outcome domain.Outcome) PageResponse {
	return PageResponse{
		Route:   s.app.Route(),
		Outcome: outcome,
		Context: encodable(s.app.Context(ctx)),
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ContextURI, "Current Context",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(encodable(s.app.Context(ctx)))
		if err != nil {
			return nil, fmt.Errorf("failed to encode context: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ContextURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
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
