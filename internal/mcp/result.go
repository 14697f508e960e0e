package mcp

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ToolResult is the outcome of a successful tools/call.
type ToolResult struct {
	Tool string

	// Raw is the JSON-RPC result object, or the whole response document
	// when the endpoint put the payload beside result.
	Raw json.RawMessage

	// Payload is the unwrapped tool output.
	Payload json.RawMessage

	// Text joins the text content items of the result.
	Text string

	Envelope string // framing strategy: "json" or "sse"
	Strategy string // unwrap strategy: "content-text" or "direct"
}

// Get looks up a gjson path in the payload.
func (r *ToolResult) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Payload, path)
}

// First returns the first of paths that exists in the payload.
func (r *ToolResult) First(paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// MarshalJSON renders the payload, so results embed cleanly in API
// responses and audit rows.
func (r *ToolResult) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.Payload) == 0 {
		return []byte("null"), nil
	}
	return r.Payload, nil
}
