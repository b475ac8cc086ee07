// Package comment renders annotation comments. Notes are Markdown; the
// rich text form is the XHTML body PDF readers expect in /RC and the plain
// form is its text content.
package comment

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const bodyOpen = `<?xml version="1.0"?><body xmlns="http://www.w3.org/1999/xhtml">`

// Comment is a rendered annotation comment.
type Comment struct {
	Plain string // for /Contents
	Rich  string // for /RC; empty when rich text is off
}

// Renderer converts notes to comments. It is safe for concurrent use.
type Renderer struct {
	md   goldmark.Markdown
	rich bool
}

// NewRenderer returns a renderer. With rich set, comments carry an XHTML
// rendering of the Markdown note and a plain text equivalent; otherwise the
// note is used verbatim.
func NewRenderer(rich bool) *Renderer {
	return &Renderer{
		md:   goldmark.New(goldmark.WithRendererOptions(gmhtml.WithXHTML(), gmhtml.WithHardWraps())),
		rich: rich,
	}
}

// Render converts a note.
func (r *Renderer) Render(note string) (Comment, error) {
	if !r.rich || strings.TrimSpace(note) == "" {
		return Comment{Plain: note}, nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(note), &buf); err != nil {
		return Comment{}, fmt.Errorf("render markdown: %w", err)
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(&buf, body)
	if err != nil {
		return Comment{}, fmt.Errorf("parse rendered comment: %w", err)
	}

	var rich bytes.Buffer
	var plain strings.Builder
	rich.WriteString(bodyOpen)
	for _, n := range nodes {
		if err := html.Render(&rich, n); err != nil {
			return Comment{}, fmt.Errorf("render xhtml: %w", err)
		}
		writeText(&plain, n)
	}
	rich.WriteString("</body>")

	return Comment{
		Plain: strings.TrimSpace(plain.String()),
		Rich:  rich.String(),
	}, nil
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.Trim(n.Data, "\n"))
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Li, atom.Pre, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
