// Package mcpserver exposes the action pipeline as MCP tools over
// stdio, so other agents can execute structured actions and resolve
// names without going through the language model.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/buildinfo"
	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/compose"
	"github.com/nugget/lifeops/internal/events"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/resolve"
)

// Tool names served.
const (
	ToolExecute = "execute_action"
	ToolParse   = "parse_action"
	ToolResolve = "resolve_name"
)

// Executor runs actions. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, act action.Action) executor.Result
}

// Resolver maps names to ids. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, class resolve.Class, name string) (resolve.Reference, bool)
	ResolveEvent(ctx context.Context, name string, w calendar.Window) (resolve.Reference, bool)
}

// Server wraps an MCP server whose tools drive the pipeline.
type Server struct {
	exec     Executor
	resolver Resolver
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	mcp *server.MCPServer
}

// New creates a server with every tool registered.
func New(exec Executor, resolver Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		exec:     exec,
		resolver: resolver,
		logger:   logger.With("component", "mcpserver"),
		now:      time.Now,
	}

	s.mcp = server.NewMCPServer(
		"lifeops",
		buildinfo.Version,
		server.WithToolCapabilities(true),
	)
	s.mcp.AddTool(executeTool(), s.handleExecute)
	s.mcp.AddTool(parseTool(), s.handleParse)
	s.mcp.AddTool(resolveTool(), s.handleResolve)
	return s
}

// SetEventBus configures event publishing for tool calls.
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// ServeStdio serves the tools on stdin and stdout until stdin closes.
// Logging must not go to stdout while this runs.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP tools on stdio", "tools", []string{ToolExecute, ToolParse, ToolResolve})
	return server.ServeStdio(s.mcp)
}

func executeTool() mcpgo.Tool {
	kinds := make([]string, 0, len(action.Kinds()))
	for _, k := range action.Kinds() {
		kinds = append(kinds, string(k))
	}
	return mcpgo.NewTool(ToolExecute,
		mcpgo.WithDescription("Execute a structured life-management action against the task database and calendar. "+
			"Project, task and event names are resolved to ids automatically. "+
			"Returns the composed result, including a prompt listing missing fields when the action is incomplete."),
		mcpgo.WithString("action",
			mcpgo.Required(),
			mcpgo.Description("Action name: "+strings.Join(kinds, ", ")+". Snake-case aliases are accepted."),
		),
		mcpgo.WithObject("params",
			mcpgo.Required(),
			mcpgo.Description(`Action parameters, e.g. {"name": "Ship v2", "projectName": "Aura", "status": "Next", "priority": "High", "due": "2025-03-01"}`),
		),
	)
}

func parseTool() mcpgo.Tool {
	return mcpgo.NewTool(ToolParse,
		mcpgo.WithDescription("Parse free text containing an action JSON object into its canonical form without executing it."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("Text holding an {\"action\": ..., \"params\": ...} object, possibly surrounded by prose"),
		),
	)
}

func resolveTool() mcpgo.Tool {
	return mcpgo.NewTool(ToolResolve,
		mcpgo.WithDescription("Resolve a project, task or calendar event name to its id using fuzzy matching."),
		mcpgo.WithString("class",
			mcpgo.Required(),
			mcpgo.Description("What the name refers to: project, task or event"),
		),
		mcpgo.WithString("name",
			mcpgo.Required(),
			mcpgo.Description("The name to resolve"),
		),
	)
}

func arguments(req mcpgo.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

func jsonResult(v any, isError bool) (*mcpgo.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	if isError {
		return mcpgo.NewToolResultError(string(out)), nil
	}
	return mcpgo.NewToolResultText(string(out)), nil
}

func (s *Server) handleExecute(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := arguments(req)
	name, _ := args["action"].(string)
	params, _ := args["params"].(map[string]any)
	if name == "" {
		return mcpgo.NewToolResultError("action is required"), nil
	}
	if params == nil {
		return mcpgo.NewToolResultError("params must be an object"), nil
	}

	raw, err := json.Marshal(map[string]any{"action": name, "params": params})
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("failed to encode action: %v", err)), nil
	}
	act, err := action.Parse(string(raw))
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	start := s.now()
	s.bus.Emit(events.SourceMCPServer, events.KindRequestStart, map[string]any{
		"tool":   ToolExecute,
		"action": string(act.Kind),
	})

	var res executor.Result
	if mf := executor.Validate(act); mf != nil {
		res = mf
	} else {
		res = s.exec.Execute(ctx, act)
	}
	resp := compose.Compose(res)

	elapsed := s.now().Sub(start)
	s.bus.Emit(events.SourceMCPServer, events.KindRequestComplete, map[string]any{
		"tool":       ToolExecute,
		"action":     string(act.Kind),
		"success":    resp.Success,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	s.logger.Info("action executed via MCP",
		"action", act.Kind,
		"success", resp.Success,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	// Incomplete actions are not tool errors: the caller is expected to
	// supply the listed fields and retry.
	return jsonResult(resp, !resp.Success && !resp.NeedsInput())
}

func (s *Server) handleParse(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	text, _ := arguments(req)["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcpgo.NewToolResultError("text is required"), nil
	}

	act, err := action.Parse(text)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	var missing []string
	if mf := executor.Validate(act); mf != nil {
		missing = mf.Fields
	}
	return jsonResult(struct {
		action.Action
		MissingFields []string `json:"missingFields,omitempty"`
	}{act, missing}, false)
}

var classes = map[string]resolve.Class{
	"project":        resolve.Project,
	"task":           resolve.Task,
	"event":          resolve.Event,
	"calendar event": resolve.Event,
}

func (s *Server) handleResolve(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := arguments(req)
	className, _ := args["class"].(string)
	name, _ := args["name"].(string)

	class, ok := classes[strings.ToLower(strings.TrimSpace(className))]
	if !ok {
		return mcpgo.NewToolResultError(fmt.Sprintf("unknown class %q: want project, task or event", className)), nil
	}
	if strings.TrimSpace(name) == "" {
		return mcpgo.NewToolResultError("name is required"), nil
	}

	var (
		ref   resolve.Reference
		found bool
	)
	if class == resolve.Event {
		ref, found = s.resolver.ResolveEvent(ctx, name, calendar.Upcoming(s.now()))
	} else {
		ref, found = s.resolver.Resolve(ctx, class, name)
	}
	if !found {
		return mcpgo.NewToolResultError(fmt.Sprintf("no %s matching %q", class, name)), nil
	}
	return jsonResult(ref, false)
}
