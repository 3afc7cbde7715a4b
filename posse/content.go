package posse

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// defaultPostContent is used when a post has neither a usable body nor a
// title.
const defaultPostContent = "New ephemera post"

// minContentLength is the threshold below which cleaned body text is
// considered too thin to post and the title is used instead.
const minContentLength = 10

// GeneratePostContent produces the final social post text for a platform:
// the cleaned body (or title fallback) truncated to the platform budget,
// followed by a blank line and the canonical URL.
func GeneratePostContent(data EphemeraData, canonicalURL, body string, kind PlatformKind) string {
	content := ""
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		content = CleanContentForSocial(trimmed, kind)
	}
	if len([]rune(content)) < minContentLength {
		if data.Title != "" {
			content = data.Title
		} else {
			content = defaultPostContent
		}
	}

	urlSuffix := "\n\n" + canonicalURL
	available := kind.maxPostLength() - len([]rune(urlSuffix)) - kind.safetyBuffer()
	if available < 3 {
		available = 3
	}

	if runes := []rune(content); len(runes) > available {
		content = string(runes[:available-3]) + "..."
	}
	return content + urlSuffix
}

// CleanContentForSocial flattens markdown into plain text suitable for a
// social post. Level-3 headings become bullets, higher headings keep only
// their text, emphasis is unwrapped, code blocks collapse to a placeholder,
// and links keep their label (Mastodon) or label plus URL (Bluesky, so the
// URL survives as text for facet extraction).
func CleanContentForSocial(markdown string, kind PlatformKind) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	r := &socialRenderer{src: src, kind: kind}
	r.blocks(doc)
	return normalizeWhitespace(r.b.String())
}

type socialRenderer struct {
	b    strings.Builder
	src  []byte
	kind PlatformKind
}

func (r *socialRenderer) sep(s string) {
	if r.b.Len() > 0 {
		r.b.WriteString(s)
	}
}

func (r *socialRenderer) blocks(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			r.sep("\n\n")
			if node.Level >= 3 {
				r.b.WriteString("• ")
			}
			r.inlines(node)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			r.sep("\n\n")
			r.b.WriteString("[code block]")
		case *ast.Paragraph, *ast.TextBlock:
			r.sep("\n\n")
			r.inlines(n)
		case *ast.List:
			r.sep("\n\n")
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if item != node.FirstChild() {
					r.b.WriteString("\n")
				}
				r.b.WriteString("- ")
				r.itemBlocks(item)
			}
		case *ast.Blockquote:
			r.blocks(node)
		case *ast.ThematicBreak, *ast.HTMLBlock:
			// nothing useful in plain text
		}
	}
}

// itemBlocks renders a list item's blocks on a single line.
func (r *socialRenderer) itemBlocks(item ast.Node) {
	first := true
	for n := item.FirstChild(); n != nil; n = n.NextSibling() {
		if !first {
			r.b.WriteString(" ")
		}
		first = false
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			r.b.WriteString("[code block]")
		default:
			r.inlines(n)
		}
	}
}

func (r *socialRenderer) inlines(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			r.b.Write(node.Segment.Value(r.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.b.WriteByte('\n')
			}
		case *ast.String:
			r.b.Write(node.Value)
		case *ast.CodeSpan, *ast.Emphasis:
			r.inlines(n)
		case *ast.Link:
			r.link(node)
		case *ast.AutoLink:
			r.b.Write(node.URL(r.src))
		case *ast.Image:
			if alt := inlineText(node, r.src); alt != "" {
				r.b.WriteString(alt)
			}
		case *ast.RawHTML:
			// dropped
		default:
			if n.HasChildren() {
				r.inlines(n)
			}
		}
	}
}

func (r *socialRenderer) link(node *ast.Link) {
	label := inlineText(node, r.src)
	dest := string(node.Destination)

	if r.kind == Bluesky {
		// Keep the URL in the text so it can be recovered as a clickable
		// facet later.
		switch {
		case label == "" || label == dest:
			r.b.WriteString(dest)
		default:
			r.b.WriteString(label)
			r.b.WriteByte(' ')
			r.b.WriteString(dest)
		}
		return
	}

	if label != "" {
		r.b.WriteString(label)
	} else {
		r.b.WriteString(dest)
	}
}

// inlineText collects the raw text of a node's inline children.
func inlineText(parent ast.Node, src []byte) string {
	var b strings.Builder
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
		case *ast.String:
			b.Write(node.Value)
		default:
			if n.HasChildren() {
				b.WriteString(inlineText(n, src))
			}
		}
	}
	return b.String()
}

var (
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n\s*\n\s*\n`)
)

func normalizeWhitespace(s string) string {
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
