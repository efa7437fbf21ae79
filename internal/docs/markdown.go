package docs

import (
	"bytes"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// Reference is a local file mentioned by a markdown document.
type Reference struct {
	Target string // as written, fragment removed
	At     bool   // an @path.md mention rather than a link
}

var atRef = regexp.MustCompile(`(?:^|[\s(])@([A-Za-z0-9_./~-]+\.md)\b`)

// References returns the local links and @path.md mentions in src.
// Code spans and code blocks are ignored, as are external URLs and anchors.
func References(src []byte) []Reference {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var refs []Reference
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			if target, ok := localTarget(string(node.Destination)); ok {
				refs = append(refs, Reference{Target: target})
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			for _, m := range atRef.FindAllStringSubmatch(inlineText(n, src), -1) {
				refs = append(refs, Reference{Target: m[1], At: true})
			}
		}
		return ast.WalkContinue, nil
	})
	return refs
}

// inlineText joins the text of a block's inline children. Code spans
// become a space so their contents never yield references.
func inlineText(block ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(block, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.CodeSpan:
			buf.WriteByte(' ')
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func localTarget(dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") {
		return "", false
	}
	if u, err := url.Parse(dest); err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}
	if dest == "" || path.IsAbs(dest) {
		return "", false
	}
	return dest, true
}

// Progress counts roadmap checkboxes.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Percent returns completion as a whole percentage.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

// Checkboxes counts GitHub-style task list items in src.
func Checkboxes(src []byte) Progress {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var p Progress
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if cb, ok := n.(*extast.TaskCheckBox); ok && entering {
			p.Total++
			if cb.IsChecked {
				p.Done++
			}
		}
		return ast.WalkContinue, nil
	})
	return p
}
