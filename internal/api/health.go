package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nugget/lifeops/internal/buildinfo"
	"github.com/nugget/lifeops/internal/connwatch"
)

// Tool endpoint states reported by health.
const (
	ToolsNotConfigured = connwatch.StateNotConfigured
	ToolsConnected     = connwatch.StateConnected
	ToolsFailed        = connwatch.StateFailed
)

// ServiceMCP is the monitor name of the remote tool endpoint.
const ServiceMCP = "mcp"

// probeTimeout bounds the tool listing done for a health check.
const probeTimeout = 5 * time.Second

// ProbeTools lists the remote tools to check the endpoint is reachable.
// It returns the endpoint state and the number of tools advertised.
func ProbeTools(ctx context.Context, tools ToolLister) (string, int) {
	if tools == nil {
		return ToolsNotConfigured, 0
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	defs, err := tools.ListTools(ctx)
	if err != nil {
		return ToolsFailed, 0
	}
	return ToolsConnected, len(defs)
}

// Health is the /health response.
type Health struct {
	OK        bool                        `json:"ok"`
	MCPStatus string                      `json:"mcp_status"`
	Tools     int                         `json:"tools"`
	Version   string                      `json:"version"`
	Uptime    string                      `json:"uptime"`
	Services  map[string]connwatch.Status `json:"services,omitempty"`
}

// handleHealth reports liveness. The process answering is enough for
// ok; a failing dependency degrades the report without failing it.
// With a monitor attached the tool endpoint is listed only when the
// monitor last saw it connected.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		OK:      true,
		Version: buildinfo.Version,
		Uptime:  buildinfo.Uptime().Truncate(time.Second).String(),
	}

	if s.monitor != nil {
		h.MCPStatus = s.monitor.State(ServiceMCP)
		h.Services = s.monitor.Statuses()
		if h.MCPStatus == ToolsConnected {
			_, h.Tools = ProbeTools(r.Context(), s.tools)
		}
	} else {
		h.MCPStatus, h.Tools = ProbeTools(r.Context(), s.tools)
	}
	if h.MCPStatus == ToolsFailed {
		s.logger.Warn("tool endpoint unreachable")
	}
	s.respond(w, http.StatusOK, h)
}
