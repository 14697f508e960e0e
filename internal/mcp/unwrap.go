package mcp

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// unwrapStrategy extracts the tool payload from a tools/call result.
type unwrapStrategy struct {
	name   string
	unwrap func(result gjson.Result) (json.RawMessage, bool)
}

// unwrappers is tried in order; the first match wins.
var unwrappers = []unwrapStrategy{
	{name: "content-text", unwrap: contentText},
	{name: "direct", unwrap: direct},
}

// unwrapPayload runs the unwrap chain and reports the strategy used.
func unwrapPayload(doc json.RawMessage) (json.RawMessage, string) {
	result := gjson.ParseBytes(doc)
	for _, s := range unwrappers {
		if payload, ok := s.unwrap(result); ok {
			return payload, s.name
		}
	}
	return nil, ""
}

// contentText decodes the first text content item whose text is a JSON
// document.
func contentText(result gjson.Result) (json.RawMessage, bool) {
	var found json.RawMessage
	result.Get("content").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "text" {
			return true
		}
		text := strings.TrimSpace(item.Get("text").String())
		if text == "" || !gjson.Valid(text) {
			return true
		}
		if t := gjson.Parse(text); !t.IsObject() && !t.IsArray() {
			return true
		}
		found = json.RawMessage(text)
		return false
	})
	return found, found != nil
}

func direct(result gjson.Result) (json.RawMessage, bool) {
	if !result.Exists() || result.Type == gjson.Null {
		return nil, false
	}
	return json.RawMessage(result.Raw), true
}

// contentTextJoined joins every text content item, for error messages
// and plain-text results.
func contentTextJoined(result gjson.Result) string {
	var parts []string
	result.Get("content").ForEach(func(_, item gjson.Result) bool {
		switch typ := item.Get("type").String(); typ {
		case "text":
			parts = append(parts, item.Get("text").String())
		case "":
		default:
			parts = append(parts, "["+typ+"]")
		}
		return true
	})
	return strings.Join(parts, "\n")
}
