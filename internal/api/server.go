// Package api implements the lifeops HTTP API: the assistant endpoint,
// direct action execution, project and execution listings, health and
// a WebSocket stream of pipeline events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/assistant"
	"github.com/nugget/lifeops/internal/audit"
	"github.com/nugget/lifeops/internal/buildinfo"
	"github.com/nugget/lifeops/internal/connwatch"
	"github.com/nugget/lifeops/internal/events"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/notion"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Assistant handles conversational requests. *assistant.Assistant
// satisfies it.
type Assistant interface {
	Handle(ctx context.Context, req assistant.Request) (*assistant.Reply, error)
}

// Executor runs actions. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, act action.Action) executor.Result
}

// Projects lists document-database pages. *notion.Client satisfies it.
type Projects interface {
	QueryDatabase(ctx context.Context, databaseID string, pageSize int) ([]notion.Page, error)
}

// ToolLister lists remote tools. *mcp.Client satisfies it.
type ToolLister interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
}

// AuditStore records and lists executions. *audit.Store satisfies it.
type AuditStore interface {
	RecordExecution(ctx context.Context, rec audit.Execution) (string, error)
	Executions(ctx context.Context, threadID string, limit int) ([]audit.Execution, error)
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	logger  *slog.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool

	assistant  Assistant
	exec       Executor
	projects   Projects
	projectsDB string
	tools      ToolLister
	store      AuditStore
	bus        *events.Bus
	monitor    *connwatch.Monitor
}

// NewServer creates a new API server. Components are attached with the
// Set methods; endpoints whose component is missing answer 503.
func NewServer(address string, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		logger:  logger.With("component", "api"),
	}
}

// SetAssistant configures the assistant endpoint.
func (s *Server) SetAssistant(a Assistant) { s.assistant = a }

// SetExecutor configures direct action execution.
func (s *Server) SetExecutor(e Executor) { s.exec = e }

// SetProjects configures the projects listing.
func (s *Server) SetProjects(p Projects, databaseID string) {
	s.projects = p
	s.projectsDB = databaseID
}

// SetTools configures the tool endpoint probe used by health. Leaving
// it unset reports the endpoint as not configured.
func (s *Server) SetTools(t ToolLister) { s.tools = t }

// SetAuditStore configures execution recording and listing.
func (s *Server) SetAuditStore(a AuditStore) { s.store = a }

// SetMonitor configures dependency status for health. Without one,
// health probes the tool endpoint on every request.
func (s *Server) SetMonitor(m *connwatch.Monitor) { s.monitor = m }

// SetEventBus configures the WebSocket event stream.
func (s *Server) SetEventBus(bus *events.Bus) { s.bus = bus }

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/assistant", s.handleAssistant)
	mux.HandleFunc("POST /v1/actions", s.handleExecute)
	mux.HandleFunc("GET /v1/projects", s.handleProjects)
	mux.HandleFunc("GET /v1/executions", s.handleExecutions)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // model generation plus up to three tool calls
	}
	s.server = srv
	s.mu.Unlock()

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the server. A later Start returns
// http.ErrServerClosed immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "lifeops",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

// errorResponse renders a request error. Pipeline outcomes use the
// composer's response shape instead.
func (s *Server) errorResponse(w http.ResponseWriter, code int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, v, s.logger)
}
