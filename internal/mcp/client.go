package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// ToolDefinition is a tool as returned by tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Client issues tools/call and tools/list requests over a Transport. It
// holds no per-request state and is safe for concurrent use.
type Client struct {
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64
}

// NewClient creates a client over the given transport.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		logger:    logger.With("component", "mcp"),
	}
}

// CallTool invokes a tool by name. A remote refusal is returned as
// *ToolError and a delivery failure as *TransportError; nothing is
// retried here.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	start := time.Now()
	resp, err := c.send(ctx, "tools/call", params)
	if err != nil {
		return nil, c.classify(name, err)
	}

	doc := resp.Body
	if resp.HasResult() {
		doc = resp.Result
	}
	result := gjson.ParseBytes(doc)

	text := contentTextJoined(result)
	if result.Get("isError").Bool() {
		return nil, &ToolError{Tool: name, Message: text}
	}

	payload, strategy := unwrapPayload(doc)
	if payload == nil {
		return nil, &TransportError{Tool: name, Err: errors.New("empty tool result")}
	}

	if msg, failed := unsuccessful(payload); failed {
		return nil, &ToolError{Tool: name, Message: msg}
	}

	c.logger.Debug("tool call complete",
		"tool", name,
		"envelope", resp.Envelope,
		"strategy", strategy,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return &ToolResult{
		Tool:     name,
		Raw:      doc,
		Payload:  payload,
		Text:     text,
		Envelope: resp.Envelope,
		Strategy: strategy,
	}, nil
}

// unsuccessful detects payloads that report failure in-band, such as
// {"successful": false, "error": "..."}.
func unsuccessful(payload json.RawMessage) (string, bool) {
	p := gjson.ParseBytes(payload)
	flag := p.Get("successful")
	if !flag.Exists() {
		flag = p.Get("successfull")
	}
	if !flag.Exists() || flag.Type == gjson.Null || flag.Bool() {
		return "", false
	}
	msg := p.Get("error").String()
	if msg == "" {
		msg = "tool reported an unsuccessful result"
	}
	return msg, true
}

// ListTools calls tools/list. The tool array is accepted under
// result.tools, as the bare result, or as a top-level tools field.
// The list is fetched fresh on every call so it doubles as a health
// probe.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	resp, err := c.send(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, c.classify("tools/list", err)
	}

	var raw string
	for _, candidate := range []gjson.Result{
		gjson.GetBytes(resp.Result, "tools"),
		gjson.ParseBytes(resp.Result),
		gjson.GetBytes(resp.Body, "tools"),
	} {
		if candidate.IsArray() {
			raw = candidate.Raw
			break
		}
	}
	if raw == "" {
		c.logger.Warn("tools/list response had no tool array", "envelope", resp.Envelope)
		return []ToolDefinition{}, nil
	}

	var tools []ToolDefinition
	if err := json.Unmarshal([]byte(raw), &tools); err != nil {
		return nil, &TransportError{Tool: "tools/list", Err: fmt.Errorf("decode tools: %w", err)}
	}

	c.logger.Debug("listed tools", "count", len(tools))
	return tools, nil
}

// Close shuts down the client and its transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) send(ctx context.Context, method string, params any) (*Response, error) {
	id := c.nextID.Add(1)
	resp, err := c.transport.Send(ctx, NewRequest(id, method, params))
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp, nil
}

// classify converts send errors into the two public error types.
func (c *Client) classify(tool string, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &ToolError{Tool: tool, Code: rpcErr.Code, Message: rpcErr.Message}
	}
	var te *TransportError
	if errors.As(err, &te) {
		out := *te
		out.Tool = tool
		return &out
	}
	return &TransportError{Tool: tool, Err: err}
}
