package action

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MissingInfo is the placeholder the model writes for a value it could
// not determine. A parameter holding it is treated as absent.
const MissingInfo = "MISSING_INFO"

// Params is the model's flat parameter map. Decoders in the notion and
// calendar packages read it through these accessors and nothing past
// that boundary touches the map directly.
type Params map[string]any

// Has reports whether key holds a usable value: present, non-null, not
// the MISSING_INFO placeholder, and not an empty or blank string.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s != "" && s != MissingInfo
	}
	return true
}

// Present reports whether key was supplied at all, even as an empty
// string. Update patches use this to tell "clear this field" from
// "leave it alone".
func (p Params) Present(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == MissingInfo {
		return false
	}
	return true
}

// String returns the value at key as a string, or "" when absent.
// Numbers and booleans are formatted; other types yield "".
func (p Params) String(key string) string {
	if !p.Present(key) {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Bool reads a boolean-like value. Native booleans and the strings
// yes/no/true/false in any case are accepted.
func (p Params) Bool(key string) (value, ok bool) {
	if !p.Has(key) {
		return false, false
	}
	switch v := p[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}

// Strings reads a list of strings. A single string is returned as a
// one-element list; non-string and placeholder entries are dropped.
func (p Params) Strings(key string) []string {
	if !p.Has(key) {
		return nil
	}
	switch v := p[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" || s == MissingInfo {
				continue
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// Int reads an integer from a JSON number or numeric string.
func (p Params) Int(key string) (int, bool) {
	if !p.Has(key) {
		return 0, false
	}
	switch v := p[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// Sentinels returns the keys holding MISSING_INFO, sorted. A list
// containing the placeholder counts as well.
func (p Params) Sentinels() []string {
	var keys []string
	for k, v := range p {
		if holdsSentinel(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func holdsSentinel(v any) bool {
	switch v := v.(type) {
	case string:
		return v == MissingInfo
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == MissingInfo {
				return true
			}
		}
	}
	return false
}

// IsSentinel reports whether key holds the MISSING_INFO placeholder.
func (p Params) IsSentinel(key string) bool {
	return holdsSentinel(p[key])
}

// Requirement is one required parameter, or a set of alternatives of
// which any one satisfies it.
type Requirement []string

// Field requires a single parameter.
func Field(name string) Requirement { return Requirement{name} }

// OneOf requires at least one of the named parameters.
func OneOf(names ...string) Requirement { return Requirement(names) }

// Missing lists the parameters that must be supplied before reqs are
// met. Unmet requirements come first, in order. An unmet one-of names
// the alternative holding MISSING_INFO if there is one, else its first
// alternative. Any other keys holding MISSING_INFO follow, sorted.
func (p Params) Missing(reqs []Requirement) []string {
	var missing []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			missing = append(missing, f)
		}
	}

	for _, req := range reqs {
		satisfied := false
		for _, f := range req {
			if p.Has(f) {
				satisfied = true
				break
			}
		}
		if satisfied || len(req) == 0 {
			continue
		}
		pick := req[0]
		for _, f := range req {
			if p.IsSentinel(f) {
				pick = f
				break
			}
		}
		add(pick)
	}

	for _, f := range p.Sentinels() {
		add(f)
	}
	return missing
}
