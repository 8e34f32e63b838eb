// Package text prepares raw input for speech synthesis: cleaning
// markdown and web artifacts out of the prose, splitting it into
// synthesis-sized chunks, and validating size limits.
package text

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

const codeOmittedMarker = "Code block omitted."

var (
	urlPattern      = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	deepPathPattern = regexp.MustCompile(`(?:/[\w.@-]+){3,}/?`)
	spacePattern    = regexp.MustCompile(`[ \t]+`)
	blankPattern    = regexp.MustCompile(`\n{2,}`)
)

// Cleaner converts raw or markdown input into prose suitable for a TTS
// voice. Cleaning is deterministic so that identical input produces
// identical downstream cache keys.
type Cleaner struct {
	announceCode bool
}

// NewCleaner returns a Cleaner. When announceCode is set, skipped code
// blocks leave a spoken marker instead of disappearing silently.
func NewCleaner(announceCode bool) *Cleaner {
	return &Cleaner{announceCode: announceCode}
}

// Clean strips markdown structure and unspeakable artifacts from input
// and returns normalized plain prose.
func (c *Cleaner) Clean(input string) string {
	plain := c.extractProse(input)

	// Structural parsing leaves bare URLs and filesystem paths behind
	// when they appear as plain text.
	plain = urlPattern.ReplaceAllString(plain, "")
	plain = deepPathPattern.ReplaceAllString(plain, "")

	plain = norm.NFC.String(plain)
	plain = spacePattern.ReplaceAllString(plain, " ")
	plain = blankPattern.ReplaceAllString(plain, "\n")
	plain = strings.ReplaceAll(plain, "\n", " ")
	plain = spacePattern.ReplaceAllString(plain, " ")
	return strings.TrimSpace(plain)
}

// extractProse walks the markdown AST and collects speakable text.
// Plain text parses as a sequence of paragraphs, so a single path
// covers both kinds of input.
func (c *Cleaner) extractProse(input string) string {
	md := goldmark.New()
	reader := gmtext.NewReader([]byte(input))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	c.walk(doc, reader.Source(), &buf)
	return buf.String()
}

func (c *Cleaner) walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if c.announceCode {
			buf.WriteString(codeOmittedMarker)
			buf.WriteString(" ")
		}
		return

	case *ast.HTMLBlock:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString(" ")
		}
		return

	case *ast.CodeSpan:
		// Speak inline code as its bare content.
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.Heading:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			c.walk(child, source, buf)
		}
		buf.WriteString(". ")
		return

	case *ast.Paragraph:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			c.walk(child, source, buf)
		}
		c.ensureTerminated(buf)
		return

	case *ast.ListItem:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			c.walk(child, source, buf)
		}
		c.ensureTerminated(buf)
		return

	case *ast.Link:
		// Keep the link text, drop the destination.
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			c.walk(child, source, buf)
		}
		return

	case *ast.AutoLink:
		return

	case *ast.Image:
		return

	case *ast.RawHTML:
		return

	case *ast.ThematicBreak:
		buf.WriteString(". ")
		return
	}

	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		c.walk(child, source, buf)
	}
}

// ensureTerminated closes the current run with sentence punctuation so
// the chunker sees a boundary between blocks.
func (c *Cleaner) ensureTerminated(buf *strings.Builder) {
	s := strings.TrimRight(buf.String(), " \t")
	if s == "" {
		return
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		buf.WriteString(" ")
	default:
		buf.WriteString(". ")
	}
}
