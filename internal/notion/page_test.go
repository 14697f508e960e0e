package notion

import (
	"testing"
)

const queryPayload = `{
  "data": {
    "response_data": {
      "results": [
        {"object":"page","id":"p-1","url":"https://notion.so/p1",
         "parent":{"type":"database_id","database_id":"aaaa-bbbb"},
         "properties":{"Name":{"title":[{"plain_text":"Aura "},{"plain_text":"Life OS"}]}}},
        {"object":"database","id":"d-1","parent":{"type":"workspace"}}
      ]
    }
  },
  "successful": true
}`

func TestPagesFrom(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"response_data results", queryPayload, 2},
		{"data results", `{"data":{"results":[{"object":"page","id":"x"}]}}`, 1},
		{"results", `{"results":[{"object":"page","id":"x"}]}`, 1},
		{"data array", `{"data":[{"object":"page","id":"x"},{"object":"page","id":"y"}]}`, 2},
		{"bare array", `[{"object":"page","id":"x"}]`, 1},
		{"nothing", `{"data":{}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := pagesFrom([]byte(tt.payload))
			if err != nil {
				t.Fatalf("pagesFrom: %v", err)
			}
			if len(pages) != tt.want {
				t.Errorf("len(pages) = %d, want %d", len(pages), tt.want)
			}
		})
	}
}

func TestPageTitleAndDatabase(t *testing.T) {
	pages, err := pagesFrom([]byte(queryPayload))
	if err != nil {
		t.Fatalf("pagesFrom: %v", err)
	}
	p := pages[0]
	if got := p.Title(PropName); got != "Aura Life OS" {
		t.Errorf("Title = %q, want %q", got, "Aura Life OS")
	}
	if got := p.Title("Missing"); got != "" {
		t.Errorf("Title(Missing) = %q, want empty", got)
	}
	if !p.InDatabase("AAAABBBB") {
		t.Error("InDatabase should ignore dashes and case")
	}
	if p.InDatabase("") {
		t.Error("InDatabase(\"\") = true")
	}
	if pages[1].InDatabase("aaaa-bbbb") {
		t.Error("non-page objects are never rows")
	}
}

func TestPageTitle_TextContentFallback(t *testing.T) {
	pages, err := pagesFrom([]byte(`[{"object":"page","id":"x","properties":{"Name":{"title":[{"text":{"content":"Raw"}}]}}}]`))
	if err != nil {
		t.Fatalf("pagesFrom: %v", err)
	}
	if got := pages[0].Title(PropName); got != "Raw" {
		t.Errorf("Title = %q, want %q", got, "Raw")
	}
}
