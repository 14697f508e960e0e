package notion

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Property value types, named as the Notion API names them.
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeSelect      = "select"
	TypeStatus      = "status"
	TypeRelation    = "relation"
	TypeCheckbox    = "checkbox"
	TypeDate        = "date"
	TypeMultiSelect = "multi_select"
)

// Value is one typed property value. Only the fields relevant to Type
// are used when encoding.
type Value struct {
	Type    string
	Text    string   // title, rich_text, select, status, date
	Names   []string // multi_select
	IDs     []string // relation
	Checked bool     // checkbox
}

// Title builds a title value.
func Title(s string) Value { return Value{Type: TypeTitle, Text: s} }

// RichText builds a long-text value.
func RichText(s string) Value { return Value{Type: TypeRichText, Text: s} }

// Select builds a single-select value.
func Select(name string) Value { return Value{Type: TypeSelect, Text: name} }

// Status builds a status-typed value. Status fields are distinct from
// selects in the Notion API.
func Status(name string) Value { return Value{Type: TypeStatus, Text: name} }

// Relation links to one or more pages.
func Relation(ids ...string) Value { return Value{Type: TypeRelation, IDs: ids} }

// Checkbox builds a boolean value.
func Checkbox(b bool) Value { return Value{Type: TypeCheckbox, Checked: b} }

// Date builds a date value from an ISO 8601 date or datetime.
func Date(start string) Value { return Value{Type: TypeDate, Text: start} }

// MultiSelect builds a multi-select value.
func MultiSelect(names ...string) Value { return Value{Type: TypeMultiSelect, Names: names} }

type textContent struct {
	Content string `json:"content"`
}

type richTextItem struct {
	Text textContent `json:"text"`
}

type named struct {
	Name string `json:"name"`
}

type ref struct {
	ID string `json:"id"`
}

type dateRange struct {
	Start string `json:"start"`
}

// MarshalJSON encodes the value in the Notion property format, for
// example {"select":{"name":"In Build"}}.
func (v Value) MarshalJSON() ([]byte, error) {
	var body any
	switch v.Type {
	case TypeTitle, TypeRichText:
		// Each text segment is capped at maxBlockRunes; longer text is
		// carried as consecutive segments.
		segments := splitRunes(v.Text, maxBlockRunes)
		items := make([]richTextItem, 0, len(segments))
		for _, seg := range segments {
			items = append(items, richTextItem{Text: textContent{Content: seg}})
		}
		body = items
	case TypeSelect, TypeStatus:
		body = named{Name: v.Text}
	case TypeRelation:
		refs := make([]ref, 0, len(v.IDs))
		for _, id := range v.IDs {
			refs = append(refs, ref{ID: id})
		}
		body = refs
	case TypeCheckbox:
		body = v.Checked
	case TypeDate:
		body = dateRange{Start: v.Text}
	case TypeMultiSelect:
		names := make([]named, 0, len(v.Names))
		for _, n := range v.Names {
			names = append(names, named{Name: n})
		}
		body = names
	default:
		return nil, fmt.Errorf("notion: unknown property type %q", v.Type)
	}
	return json.Marshal(map[string]any{v.Type: body})
}

// Patch maps property names to values. It is built fresh for each
// request and not modified after it is handed to the tool client.
type Patch map[string]Value

// Without returns a copy of p minus the named properties.
func (p Patch) Without(names ...string) Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Keys returns the property names in p, sorted.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
