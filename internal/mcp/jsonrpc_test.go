package mcp

import (
	"encoding/json"
	"testing"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(42, "tools/call", map[string]any{"name": "NOTION_SEARCH_NOTION_PAGE"})

	if req.JSONRPC != "2.0" {
		t.Errorf("JSONRPC = %q, want %q", req.JSONRPC, "2.0")
	}
	if req.ID != 42 {
		t.Errorf("ID = %d, want 42", req.ID)
	}
	if req.Method != "tools/call" {
		t.Errorf("Method = %q, want %q", req.Method, "tools/call")
	}
}

func TestRequestOmitsNilParams(t *testing.T) {
	data, err := json.Marshal(NewRequest(1, "ping", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["params"]; ok {
		t.Error("params should be omitted when nil")
	}
}

func TestResponseUnmarshalError(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}`
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Error == nil {
		t.Fatal("Error is nil, want non-nil")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error.Code = %d, want -32601", resp.Error.Code)
	}
	if resp.HasResult() {
		t.Error("HasResult() = true for error response")
	}
}

func TestResponse_StringID(t *testing.T) {
	var resp Response
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"abc","result":null}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.HasResult() {
		t.Error("HasResult() = true for null result")
	}
}

func TestRPCErrorString(t *testing.T) {
	e := &RPCError{Code: -32600, Message: "Invalid Request"}
	if got, want := e.Error(), "jsonrpc error -32600: Invalid Request"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
