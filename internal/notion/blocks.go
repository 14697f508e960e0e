package notion

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// maxBlockRunes is the Notion limit for a single rich-text segment.
const maxBlockRunes = 2000

// ContentBlocks splits markdown into its top-level blocks (paragraphs,
// headings, lists, fenced code, quotes) so each can be appended as its
// own page block. Markers are kept, so headings stay recognisable.
// Blocks longer than the Notion segment limit are split.
func ContentBlocks(markdown string) []string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var starts []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		start, ok := blockStart(n, src)
		if !ok {
			continue
		}
		if len(starts) == 0 || start > starts[len(starts)-1] {
			starts = append(starts, start)
		}
	}
	if len(starts) == 0 {
		if s := strings.TrimSpace(markdown); s != "" {
			return splitRunes(s, maxBlockRunes)
		}
		return nil
	}
	starts[0] = 0

	var blocks []string
	for i, start := range starts {
		end := len(src)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if b := strings.TrimSpace(string(src[start:end])); b != "" {
			blocks = append(blocks, splitRunes(b, maxBlockRunes)...)
		}
	}
	return blocks
}

// blockStart finds the offset of the first source line belonging to a
// top-level node.
func blockStart(n ast.Node, src []byte) (int, bool) {
	start := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := c.Lines(); lines != nil && lines.Len() > 0 {
			if s := lines.At(0).Start; start < 0 || s < start {
				start = s
			}
		}
		return ast.WalkContinue, nil
	})
	if start < 0 {
		return 0, false
	}

	start = lineStart(src, start)
	if _, fenced := n.(*ast.FencedCodeBlock); fenced && start > 0 {
		// Content lines begin after the opening fence.
		start = lineStart(src, start-1)
	}
	return start, true
}

func lineStart(src []byte, i int) int {
	for i > 0 && src[i-1] != '\n' {
		i--
	}
	return i
}

func splitRunes(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var out []string
	for len(s) > 0 {
		n, i := 0, 0
		for i < len(s) && n < limit {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			n++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}
