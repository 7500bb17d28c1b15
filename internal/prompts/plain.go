package prompts

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	extraBlankLines = regexp.MustCompile(`\n{3,}`)
	trailingSpace   = regexp.MustCompile(`[ \t]+\n`)
)

// Plain flattens markdown into speakable text. Emphasis, heading and link
// syntax is dropped but every word is kept: code blocks are read out as
// their lines, raw HTML stays as written and images keep their alt text.
// Paragraphs stay separated by blank lines.
func Plain(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(src))
				switch {
				case n.HardLineBreak():
					b.WriteByte('\n')
				case n.SoftLineBreak():
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(n.Label(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				writeLines(&b, n.Lines(), src)
				b.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			if entering {
				writeLines(&b, n.Lines(), src)
				if n.HasClosure() {
					b.Write(n.ClosureLine.Value(src))
				}
				b.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			if entering {
				for i := 0; i < n.Segments.Len(); i++ {
					seg := n.Segments.At(i)
					b.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.ListItem:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.List:
			if !entering {
				b.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})

	out := trailingSpace.ReplaceAllString(b.String(), "\n")
	out = extraBlankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// writeLines copies block lines without their indentation.
func writeLines(b *strings.Builder, lines *text.Segments, src []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.WriteString(strings.TrimLeft(string(seg.Value(src)), " \t"))
	}
}
