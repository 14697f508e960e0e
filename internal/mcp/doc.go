// Package mcp is the tool invoker: a client for the remote tool endpoint
// that fronts Notion and Google Calendar.
//
// Every external mutation is one JSON-RPC 2.0 tools/call request sent
// over streamable HTTP. The endpoint answers either with a plain
// JSON-RPC body or with a single server-sent event whose data: line
// carries the same body, and the useful payload is frequently a JSON
// document encoded as text inside result.content. Both layers are
// peeled by ordered, named strategy chains (see envelope.go and
// unwrap.go) so the strategy that matched is visible on every
// [ToolResult].
//
// Failures come back as one of two types. [*ToolError] means the remote
// side understood the call and refused it. [*TransportError] means the
// call never produced a usable JSON-RPC response.
package mcp
