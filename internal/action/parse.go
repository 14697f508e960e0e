package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Parse failure classes. Every error returned by [Parse] is a
// *ParseError wrapping exactly one of these.
var (
	ErrNoJSON        = errors.New("no valid JSON found in model output")
	ErrMissingAction = errors.New(`missing or invalid "action" field`)
	ErrMissingParams = errors.New(`missing or invalid "params" field`)
	ErrUnknownAction = errors.New("unknown action")
)

// ParseError describes why raw model output could not become an Action.
type ParseError struct {
	Err    error  // one of the Err* sentinels
	Action string // offending name, set for ErrUnknownAction
	Raw    string // the input, for repair prompts
}

func (e *ParseError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%v %q", e.Err, e.Action)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw model output into an Action. Strict JSON is tried
// first. Failing that, the first balanced {...} object embedded in the
// text is used. Parse has no side effects and never modifies params.
func Parse(raw string) (Action, error) {
	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope == nil {
		envelope = extractObject(raw)
		if envelope == nil {
			return Action{}, &ParseError{Err: ErrNoJSON, Raw: raw}
		}
	}

	name, ok := envelope["action"].(string)
	if !ok || name == "" {
		return Action{}, &ParseError{Err: ErrMissingAction, Raw: raw}
	}

	params, ok := envelope["params"].(map[string]any)
	if !ok {
		return Action{}, &ParseError{Err: ErrMissingParams, Raw: raw}
	}

	kind, ok := Normalize(name)
	if !ok {
		return Action{}, &ParseError{Err: ErrUnknownAction, Action: name, Raw: raw}
	}

	return Action{Kind: kind, Params: Params(params)}, nil
}

// extractObject returns the first balanced {...} substring of s that
// decodes as a JSON object, or nil.
func extractObject(s string) map[string]any {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		end := matchBrace(s, start)
		if end < 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil && obj != nil {
			return obj
		}
	}
	return nil
}

// matchBrace returns the index of the brace closing the one at open,
// skipping braces inside JSON string literals, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
