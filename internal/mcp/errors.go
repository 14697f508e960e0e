package mcp

import (
	"fmt"
	"net/http"
)

// ToolError means the remote endpoint answered and reported a failure:
// a JSON-RPC error object, a result flagged isError, or a payload
// marked unsuccessful. The message is the remote text, verbatim.
type ToolError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool %s failed (code %d): %s", e.Tool, e.Code, e.Message)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// TransportError means no usable JSON-RPC response came back: the
// request could not be sent, the status was not 2xx, or the body could
// not be read or decoded.
type TransportError struct {
	Tool       string
	StatusCode int    // 0 when no HTTP response was received
	Body       string // truncated response body, when one was read
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Tool
	if msg == "" {
		msg = "tool endpoint"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }
