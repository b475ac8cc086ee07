package layout

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/content"
)

// Builder assembles a Tree and an Index from rendering callbacks.
// It implements content.Device.
type Builder struct {
	tree  *Tree
	index *Index

	page    int
	open    []NodeID // page followed by open groups
	line    NodeID
	keyword int
}

var _ content.Device = (*Builder)(nil)

// NewBuilder returns a builder with an empty tree.
func NewBuilder() *Builder {
	return &Builder{tree: NewTree(), index: NewIndex(), line: None}
}

// BeginPage starts a new page node below the document root.
func (b *Builder) BeginPage(id int, box rect.Rect) {
	b.EndPage()
	b.page = id
	n := b.tree.Append(b.tree.Root(), Node{Kind: KindPage, BBox: box, PageID: id})
	b.open = append(b.open[:0], n)
	b.index.addPage(id)
}

// EndPage closes the current page and any groups left open.
func (b *Builder) EndPage() {
	for len(b.open) > 1 {
		b.EndGroup()
	}
	b.open = b.open[:0]
	b.line = None
}

// BeginGroup opens a group below the innermost open container.
func (b *Builder) BeginGroup(box rect.Rect, _ matrix.Matrix) {
	if len(b.open) == 0 {
		return
	}
	g := b.tree.Append(b.top(), Node{Kind: KindGroup, BBox: box})
	b.open = append(b.open, g)
	b.line = None
}

// EndGroup closes the innermost group. Its box becomes the union of its
// children, or stays as given when it has none.
func (b *Builder) EndGroup() {
	if len(b.open) <= 1 {
		return
	}
	g := b.top()
	b.open = b.open[:len(b.open)-1]
	b.line = None

	var box rect.Rect
	for _, c := range b.tree.Node(g).Children {
		box = union(box, b.tree.Node(c).BBox)
	}
	if box != (rect.Rect{}) {
		b.tree.Node(g).BBox = box
	}
}

// RenderTextRun starts a line for one show-text operator and reserves its
// string runs in the index.
func (b *Builder) RenderTextRun(run content.TextRun, _ content.Array) {
	if len(b.open) == 0 {
		return
	}
	b.line = b.tree.Append(b.top(), Node{Kind: KindLine})
	b.keyword = run.Keyword
	b.index.addRun(b.page, run.Keyword, run.Strings)
}

// RenderGlyph appends a glyph to the current line.
func (b *Builder) RenderGlyph(g content.Glyph) content.GlyphHandle {
	if len(b.open) == 0 {
		return content.GlyphHandle(None)
	}
	if b.line == None {
		b.RenderTextRun(content.TextRun{Keyword: b.keyword, Strings: g.Run + 1}, nil)
	}
	id := b.tree.Append(b.line, Node{Kind: KindGlyph, BBox: g.BBox, Text: g.Text})
	line := b.tree.Node(b.line)
	line.BBox = union(line.BBox, g.BBox)
	b.index.addGlyph(b.page, b.keyword, g.Run, id)
	return content.GlyphHandle(id)
}

func (b *Builder) top() NodeID {
	return b.open[len(b.open)-1]
}

// Tree returns the tree built so far.
func (b *Builder) Tree() *Tree {
	return b.tree
}

// Index returns the navigation index built so far.
func (b *Builder) Index() *Index {
	return b.index
}
