package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// envelopeStrategy recognizes one response framing and decodes the
// JSON-RPC document inside it.
type envelopeStrategy struct {
	name   string
	decode func(body []byte) (json.RawMessage, bool)
}

// envelopes is tried in order; the first match wins.
var envelopes = []envelopeStrategy{
	{name: "json", decode: plainJSON},
	{name: "sse", decode: firstEventData},
}

var errNoEnvelope = errors.New("response is neither JSON nor a server-sent event")

// decodeEnvelope runs the envelope chain over a response body.
func decodeEnvelope(body []byte) (*Response, error) {
	for _, s := range envelopes {
		doc, ok := s.decode(body)
		if !ok {
			continue
		}
		var resp Response
		if err := json.Unmarshal(doc, &resp); err != nil {
			continue
		}
		resp.Body = doc
		resp.Envelope = s.name
		return &resp, nil
	}
	return nil, errNoEnvelope
}

func plainJSON(body []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, false
	}
	return json.RawMessage(trimmed), true
}

// firstEventData returns the first data: line of an event stream that
// holds a JSON object.
func firstEventData(body []byte) (json.RawMessage, bool) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if doc, ok := plainJSON([]byte(data)); ok {
			return doc, true
		}
	}
	return nil, false
}
