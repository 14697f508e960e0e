package mcp

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantEnvelope string
		wantResult   string
	}{
		{
			name:         "plain json",
			body:         `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`,
			wantEnvelope: "json",
			wantResult:   `{"ok":true}`,
		},
		{
			name:         "plain json with whitespace",
			body:         "\n  {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":[]}\n",
			wantEnvelope: "json",
			wantResult:   `[]`,
		},
		{
			name:         "single event",
			body:         "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":7,\"result\":{\"ok\":1}}\n\n",
			wantEnvelope: "sse",
			wantResult:   `{"ok":1}`,
		},
		{
			name:         "event without space after colon",
			body:         "id: 1\nevent: message\ndata:{\"jsonrpc\":\"2.0\",\"result\":{\"n\":2}}\n\n",
			wantEnvelope: "sse",
			wantResult:   `{"n":2}`,
		},
		{
			name:         "first json data line wins",
			body:         "data: ping\n\ndata: {\"result\":{\"first\":true}}\n\ndata: {\"result\":{\"first\":false}}\n\n",
			wantEnvelope: "sse",
			wantResult:   `{"first":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeEnvelope([]byte(tt.body))
			if err != nil {
				t.Fatalf("decodeEnvelope: %v", err)
			}
			if resp.Envelope != tt.wantEnvelope {
				t.Errorf("Envelope = %q, want %q", resp.Envelope, tt.wantEnvelope)
			}
			if string(resp.Result) != tt.wantResult {
				t.Errorf("Result = %s, want %s", resp.Result, tt.wantResult)
			}
			if !json.Valid(resp.Body) {
				t.Errorf("Body is not valid JSON: %s", resp.Body)
			}
		})
	}
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	for _, body := range []string{"", "<html>bad gateway</html>", "event: message\ndata: not json\n\n", `[1,2]`} {
		if _, err := decodeEnvelope([]byte(body)); !errors.Is(err, errNoEnvelope) {
			t.Errorf("decodeEnvelope(%q) err = %v, want errNoEnvelope", body, err)
		}
	}
}

func TestUnwrapPayload(t *testing.T) {
	tests := []struct {
		name         string
		doc          string
		wantStrategy string
		wantPayload  string
	}{
		{
			name:         "content text json",
			doc:          `{"content":[{"type":"text","text":"{\"data\":{\"id\":\"p1\"}}"}]}`,
			wantStrategy: "content-text",
			wantPayload:  `{"data":{"id":"p1"}}`,
		},
		{
			name:         "skips non-json text",
			doc:          `{"content":[{"type":"text","text":"hello"},{"type":"image"},{"type":"text","text":"[1]"}]}`,
			wantStrategy: "content-text",
			wantPayload:  `[1]`,
		},
		{
			name:         "scalar text falls through to direct",
			doc:          `{"content":[{"type":"text","text":"42"}]}`,
			wantStrategy: "direct",
			wantPayload:  `{"content":[{"type":"text","text":"42"}]}`,
		},
		{
			name:         "direct object",
			doc:          `{"data":{"items":[]}}`,
			wantStrategy: "direct",
			wantPayload:  `{"data":{"items":[]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, strategy := unwrapPayload(json.RawMessage(tt.doc))
			if strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", strategy, tt.wantStrategy)
			}
			if string(payload) != tt.wantPayload {
				t.Errorf("payload = %s, want %s", payload, tt.wantPayload)
			}
		})
	}
}
