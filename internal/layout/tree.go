// Package layout holds the page/group/line/glyph tree of a rendered
// document and the navigation index that maps location tokens to glyphs.
package layout

import (
	"errors"
	"fmt"
	"strings"

	"seehuhn.de/go/geom/rect"
)

// ErrDetachedNode is returned when a node has no page ancestor.
var ErrDetachedNode = errors.New("node has no page ancestor")

// Kind is the variant of a Node.
type Kind uint8

const (
	KindDocument Kind = iota
	KindPage
	KindGroup
	KindLine
	KindGlyph
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindPage:
		return "page"
	case KindGroup:
		return "group"
	case KindLine:
		return "line"
	case KindGlyph:
		return "glyph"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// NodeID addresses a node in its Tree.
type NodeID int32

// None is the parent of the root and the successor of the last node.
const None NodeID = -1

// Node is one element of the layout tree.
type Node struct {
	Kind     Kind
	BBox     rect.Rect
	Parent   NodeID
	Index    int // position in the parent's Children
	Children []NodeID

	PageID int    // KindPage only
	Text   string // KindGlyph only
}

// Tree is an arena of nodes. Node 0 is the document root.
type Tree struct {
	nodes []Node
}

// NewTree returns a tree containing only the document root.
func NewTree() *Tree {
	return &Tree{nodes: []Node{{Kind: KindDocument, Parent: None}}}
}

// Root returns the document node.
func (t *Tree) Root() NodeID {
	return 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Valid reports whether id addresses a node of t.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Node returns the node with the given id. The pointer is valid until the
// next Append.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Append adds n as the last child of parent and returns its id.
func (t *Tree) Append(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = parent
	n.Index = len(t.nodes[parent].Children)
	n.Children = nil
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Next returns the successor of id in document order: the first child
// unless leaf reports true for the node, else the next sibling of id or of
// its nearest ancestor that has one. It returns None after the last node.
func (t *Tree) Next(id NodeID, leaf func(*Node) bool) NodeID {
	n := &t.nodes[id]
	if len(n.Children) > 0 && (leaf == nil || !leaf(n)) {
		return n.Children[0]
	}
	for {
		n := &t.nodes[id]
		if n.Parent == None {
			return None
		}
		p := &t.nodes[n.Parent]
		if n.Index+1 < len(p.Children) {
			return p.Children[n.Index+1]
		}
		id = n.Parent
	}
}

// Walk calls fn for id and all its descendants in emission order.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID, *Node) bool) {
	n := &t.nodes[id]
	if !fn(id, n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// PageOf returns the page node that contains id.
func (t *Tree) PageOf(id NodeID) (NodeID, error) {
	for cur := id; cur != None; cur = t.nodes[cur].Parent {
		if t.nodes[cur].Kind == KindPage {
			return cur, nil
		}
	}
	return None, fmt.Errorf("%w: node %d", ErrDetachedNode, id)
}

// Text concatenates the glyph text below id.
func (t *Tree) Text(id NodeID) string {
	var b strings.Builder
	t.Walk(id, func(_ NodeID, n *Node) bool {
		if n.Kind == KindGlyph {
			b.WriteString(n.Text)
		}
		return true
	})
	return b.String()
}

// Pages returns the page nodes in emission order.
func (t *Tree) Pages() []NodeID {
	return t.nodes[0].Children
}

func union(a, b rect.Rect) rect.Rect {
	if a == (rect.Rect{}) {
		return b
	}
	if b == (rect.Rect{}) {
		return a
	}
	return rect.Rect{
		LLx: min(a.LLx, b.LLx),
		LLy: min(a.LLy, b.LLy),
		URx: max(a.URx, b.URx),
		URy: max(a.URy, b.URy),
	}
}
