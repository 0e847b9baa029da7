// Package extract pulls a single HTML document out of a free-form model reply.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/playforge/api/internal/models"
)

// Strategy names the rule that matched, for logging
type Strategy string

const (
	StrategyNone         Strategy = "none"
	StrategyLabeledFence Strategy = "labeled_fence"
	StrategyClosingFence Strategy = "closing_tag_fence"
	StrategyBareDocument Strategy = "bare_document"
)

// inlineHTMLFence finds an html-labelled fence that markdown parsing misses:
// one opened mid-line, one with no newline after the label, or one indented
// far enough to read as a code block.
var inlineHTMLFence = regexp.MustCompile("(?is)```html\\s*(.+?)```")

// DocumentWithStrategy returns the candidate document of reply and the rule
// that matched, or StrategyNone when the reply has no recognisable document
// structure. Rules are tried in order: fenced block labelled html, fenced
// block ending with </html>, then the whole reply when it contains a doctype
// or <html tag.
func DocumentWithStrategy(reply *models.ExternalReply) (string, Strategy) {
	blocks := reply.TextBlocks()
	if len(blocks) == 0 {
		return "", StrategyNone
	}
	combined := strings.Join(blocks, "\n")

	fences := closedFences([]byte(combined))
	for _, f := range fences {
		if strings.EqualFold(f.language, "html") {
			if body := strings.TrimSpace(f.content); body != "" {
				return body, StrategyLabeledFence
			}
		}
	}
	if m := inlineHTMLFence.FindStringSubmatch(combined); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, StrategyLabeledFence
		}
	}
	for _, f := range fences {
		body := strings.TrimSpace(f.content)
		if hasSuffixFold(body, "</html>") {
			return body, StrategyClosingFence
		}
	}

	if looksLikeDocument(combined) {
		return combined, StrategyBareDocument
	}
	return "", StrategyNone
}

func looksLikeDocument(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<!doctype html") || strings.Contains(lower, "<html")
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

type fence struct {
	language string
	content  string
}

// closedFences lists fenced code blocks in document order. Blocks left open
// at the end of the input are skipped; they usually mean a truncated reply.
func closedFences(src []byte) []fence {
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var out []fence
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		last := lines.At(lines.Len() - 1)
		if !closedAt(src, last.Stop) {
			return ast.WalkSkipChildren, nil
		}

		var buf bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		out = append(out, fence{
			language: string(block.Language(src)),
			content:  buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return out
}

// closedAt reports whether a closing fence starts at offset, allowing for
// indentation and blockquote markers.
func closedAt(src []byte, offset int) bool {
	if offset >= len(src) {
		return false
	}
	rest := bytes.TrimLeft(src[offset:], " \t>")
	return bytes.HasPrefix(rest, []byte("```")) || bytes.HasPrefix(rest, []byte("~~~"))
}
