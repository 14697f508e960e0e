package notion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestContentBlocks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  \n\n ", nil},
		{"single paragraph", "Shipped the release.", []string{"Shipped the release."}},
		{
			name: "heading and paragraphs",
			in:   "## Wins\n\nShipped v2.\nOn time.\n\nNext up: docs.",
			want: []string{"## Wins", "Shipped v2.\nOn time.", "Next up: docs."},
		},
		{
			name: "list stays together",
			in:   "Todo:\n\n- one\n- two\n\nDone.",
			want: []string{"Todo:", "- one\n- two", "Done."},
		},
		{
			name: "fenced code keeps its fence",
			in:   "Run this:\n\n```sh\nmake\n\nmake test\n```\n\nThen deploy.",
			want: []string{"Run this:", "```sh\nmake\n\nmake test\n```", "Then deploy."},
		},
		{
			name: "quote keeps its marker",
			in:   "Intro\n\n> quoted line",
			want: []string{"Intro", "> quoted line"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentBlocks(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ContentBlocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestContentBlocks_SplitsLongBlocks(t *testing.T) {
	long := strings.Repeat("é", maxBlockRunes+10)
	got := ContentBlocks(long)
	if len(got) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(got))
	}
	if n := utf8.RuneCountInString(got[0]); n != maxBlockRunes {
		t.Errorf("first block runes = %d, want %d", n, maxBlockRunes)
	}
	if n := utf8.RuneCountInString(got[1]); n != 10 {
		t.Errorf("second block runes = %d, want 10", n)
	}
}
