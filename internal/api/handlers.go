package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/assistant"
	"github.com/nugget/lifeops/internal/audit"
	"github.com/nugget/lifeops/internal/compose"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/notion"
)

const (
	defaultProjectPage = 10
	maxProjectPage     = 100
	defaultListLimit   = 50
	maxListLimit       = 500
)

// StatusFor maps a composed response onto an HTTP status. Requests
// that need more input answer 422 so callers can prompt and retry.
func StatusFor(resp compose.Response) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.NeedsInput():
		return http.StatusUnprocessableEntity
	case resp.ErrorType == "tool_error", resp.ErrorType == "transport_error":
		return http.StatusBadGateway
	case resp.ErrorType == "parse_error":
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "unavailable", "assistant not configured")
		return
	}

	var req assistant.Request
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	reply, err := s.assistant.Handle(r.Context(), req)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		s.errorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	case errors.Is(err, audit.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "not_found", err.Error())
		return
	case err != nil:
		s.logger.Error("assistant request failed", "error", err)
		s.errorResponse(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	s.respond(w, StatusFor(reply.Response), reply)
}

// executeReply is the direct-execution response.
type executeReply struct {
	compose.Response
	ExecutionMS int64 `json:"executionTime"`
}

// handleExecute runs an already-structured action, skipping the model.
// The body is the same {"action","params"} object the model produces.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.exec == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "unavailable", "executor not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	act, err := action.Parse(string(body))
	if err != nil {
		resp := compose.ParseFailure(err)
		s.respond(w, StatusFor(resp), executeReply{Response: resp})
		return
	}

	start := time.Now()
	var res executor.Result
	if mf := executor.Validate(act); mf != nil {
		res = mf
	} else {
		res = s.exec.Execute(r.Context(), act)
	}
	resp := compose.Compose(res)
	reply := executeReply{Response: resp, ExecutionMS: time.Since(start).Milliseconds()}

	s.record(r, act, reply)
	s.respond(w, StatusFor(resp), reply)
}

func (s *Server) record(r *http.Request, act action.Action, reply executeReply) {
	if s.store == nil {
		return
	}
	args, err := json.Marshal(act.Params)
	if err != nil {
		s.logger.Warn("failed to encode execution args", "error", err)
		return
	}
	result, err := json.Marshal(reply.Response)
	if err != nil {
		s.logger.Warn("failed to encode execution result", "error", err)
		return
	}
	status := audit.StatusOK
	if !reply.Success {
		status = audit.StatusError
	}
	if _, err := s.store.RecordExecution(r.Context(), audit.Execution{
		Action:      string(act.Kind),
		Args:        args,
		Result:      result,
		Status:      status,
		ExecutionMS: reply.ExecutionMS,
	}); err != nil {
		s.logger.Warn("failed to record execution", "action", act.Kind, "error", err)
	}
}

// Project is one entry of the projects listing.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if s.projects == nil || s.projectsDB == "" {
		s.errorResponse(w, http.StatusServiceUnavailable, "unavailable", "projects database not configured")
		return
	}

	size, err := queryInt(r, "page_size", defaultProjectPage, maxProjectPage)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	pages, err := s.projects.QueryDatabase(r.Context(), s.projectsDB, size)
	if err != nil {
		s.logger.Error("project listing failed", "error", err)
		s.errorResponse(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	projects := make([]Project, 0, len(pages))
	for _, p := range pages {
		projects = append(projects, Project{
			ID:   p.ID,
			Name: p.Title(notion.PropName),
			URL:  p.URL,
		})
	}
	s.respond(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "unavailable", "audit store not configured")
		return
	}

	limit, err := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	execs, err := s.store.Executions(r.Context(), strings.TrimSpace(r.URL.Query().Get("threadId")), limit)
	if err != nil {
		s.logger.Error("execution listing failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if execs == nil {
		execs = []audit.Execution{}
	}
	s.respond(w, http.StatusOK, map[string]any{"executions": execs})
}

// queryInt reads a positive integer query parameter, applying def when
// absent and clamping to limit.
func queryInt(r *http.Request, name string, def, limit int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return min(n, limit), nil
}
