package notion

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Page is a page object as returned by database queries and searches.
type Page struct {
	Object     string                     `json:"object"`
	ID         string                     `json:"id"`
	URL        string                     `json:"url,omitempty"`
	Parent     Parent                     `json:"parent"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
}

// Parent identifies where a page lives.
type Parent struct {
	Type       string `json:"type,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

// Title returns the plain text of a title property, joining all of its
// rich-text segments.
func (p Page) Title(prop string) string {
	raw, ok := p.Properties[prop]
	if !ok {
		return ""
	}
	var b strings.Builder
	gjson.GetBytes(raw, "title").ForEach(func(_, seg gjson.Result) bool {
		text := seg.Get("plain_text")
		if !text.Exists() {
			text = seg.Get("text.content")
		}
		b.WriteString(text.String())
		return true
	})
	return strings.TrimSpace(b.String())
}

// InDatabase reports whether the page is a row of the given database.
func (p Page) InDatabase(databaseID string) bool {
	return p.Object == "page" && databaseID != "" && SameID(p.Parent.DatabaseID, databaseID)
}

// SameID compares Notion ids, which appear both with and without
// dashes.
func SameID(a, b string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	}
	return norm(a) == norm(b)
}

// resultPaths are the places a page list has been seen in tool payloads.
var resultPaths = []string{
	"data.response_data.results",
	"response_data.results",
	"data.results",
	"results",
	"data",
}

// pagesFrom extracts the page list from a query or search payload.
func pagesFrom(payload []byte) ([]Page, error) {
	list := gjson.ParseBytes(payload)
	if !list.IsArray() {
		list = gjson.Result{}
		for _, path := range resultPaths {
			if v := gjson.GetBytes(payload, path); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.Exists() {
		return nil, nil
	}
	var pages []Page
	if err := json.Unmarshal([]byte(list.Raw), &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// idPaths are the places a created page id has been seen.
var idPaths = []string{
	"data.data.id",
	"data.id",
	"id",
	"data.response_data.id",
	"response_data.id",
}
