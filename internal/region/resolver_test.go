package region

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/layout"
)

// addLine appends a line of single-character glyphs, each 5 units wide,
// starting at x and sitting between y and y+10.
func addLine(tree *layout.Tree, parent layout.NodeID, x, y float64, text string) []layout.NodeID {
	line := tree.Append(parent, layout.Node{Kind: layout.KindLine})
	var ids []layout.NodeID
	var lb rect.Rect
	for i, c := range text {
		b := rect.Rect{LLx: x + 5*float64(i), LLy: y, URx: x + 5*float64(i) + 5, URy: y + 10}
		ids = append(ids, tree.Append(line, layout.Node{Kind: layout.KindGlyph, BBox: b, Text: string(c)}))
		if i == 0 {
			lb = b
		} else {
			lb.URx = b.URx
		}
	}
	tree.Node(line).BBox = lb
	return ids
}

func TestSingleLineRange(t *testing.T) {
	tree := layout.NewTree()
	page := tree.Append(tree.Root(), layout.Node{Kind: layout.KindPage, PageID: 0})
	glyphs := addLine(tree, page, 10, 90, "hello world")

	r := NewResolver(tree)
	got, err := r.Range(glyphs[0], glyphs[4])
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	want := []Region{{BBox: BoundingBox{10, 90, 35, 100}, Page: 0, Text: "hello"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestThreeLineRange(t *testing.T) {
	tree := layout.NewTree()
	page := tree.Append(tree.Root(), layout.Node{Kind: layout.KindPage, PageID: 2})
	group := tree.Append(page, layout.Node{Kind: layout.KindGroup})
	first := addLine(tree, group, 10, 90, "abcdef")
	addLine(tree, group, 10, 78, "ghij")
	other := tree.Append(page, layout.Node{Kind: layout.KindGroup})
	third := addLine(tree, other, 20, 66, "klmno")

	got, err := NewResolver(tree).Range(first[2], third[1])
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	want := []Region{
		{BBox: BoundingBox{20, 90, 40, 100}, Page: 2, Text: "cdef"},
		{BBox: BoundingBox{10, 78, 30, 88}, Page: 2, Text: "ghij"},
		{BBox: BoundingBox{20, 66, 30, 76}, Page: 2, Text: "kl"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeOfOneGlyphIsSingle(t *testing.T) {
	tree := layout.NewTree()
	page := tree.Append(tree.Root(), layout.Node{Kind: layout.KindPage, PageID: 1})
	glyphs := addLine(tree, page, 0, 0, "xyz")

	r := NewResolver(tree)
	for _, g := range glyphs {
		single, err := r.Single(g)
		if err != nil {
			t.Fatalf("Single: %v", err)
		}
		rng, err := r.Range(g, g)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if diff := cmp.Diff([]Region{single}, rng); diff != "" {
			t.Errorf("glyph %d (-single +range):\n%s", g, diff)
		}
	}
}

func TestRangeErrors(t *testing.T) {
	tree := layout.NewTree()
	page := tree.Append(tree.Root(), layout.Node{Kind: layout.KindPage})
	a := addLine(tree, page, 0, 50, "ab")
	b := addLine(tree, page, 0, 30, "cd")

	r := NewResolver(tree)
	if _, err := r.Range(b[0], a[0]); !errors.Is(err, ErrEndNotFound) {
		t.Errorf("expected ErrEndNotFound for reversed range, got %v", err)
	}
	if _, err := r.Range(page, b[0]); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for page node, got %v", err)
	}
	if _, err := r.Single(layout.NodeID(999)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for unknown node, got %v", err)
	}

	tree2 := layout.NewTree()
	p2 := tree2.Append(tree2.Root(), layout.Node{Kind: layout.KindPage})
	x := addLine(tree2, p2, 0, 0, "a")
	g := tree2.Append(p2, layout.Node{Kind: layout.KindGroup})
	y := addLine(tree2, g, 0, 0, "b")
	r2 := NewResolver(tree2)
	r2.MaxSteps = 1
	if _, err := r2.Range(x[0], y[0]); !errors.Is(err, ErrTraversalOverrun) {
		t.Errorf("expected ErrTraversalOverrun, got %v", err)
	}
}

func TestDetachedGlyph(t *testing.T) {
	tree := layout.NewTree()
	glyphs := addLine(tree, tree.Root(), 0, 0, "a")
	if _, err := NewResolver(tree).Single(glyphs[0]); !errors.Is(err, layout.ErrDetachedNode) {
		t.Errorf("expected ErrDetachedNode, got %v", err)
	}
}

func TestSetComment(t *testing.T) {
	s := Set{Regions: []Region{{Text: "one", Page: 3}, {}, {Text: "two"}}}
	if got := s.Comment(); got != "one\ntwo" {
		t.Errorf("expected joined text, got %q", got)
	}
	if s.Page() != 3 {
		t.Errorf("expected page 3, got %d", s.Page())
	}
	s.Note = "explicit"
	if got := s.Comment(); got != "explicit" {
		t.Errorf("expected explicit note, got %q", got)
	}
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{X0: 10, Y0: 100, X1: 40, Y1: 80}
	if b.Width() != 30 || b.Height() != 20 {
		t.Errorf("unexpected size %vx%v", b.Width(), b.Height())
	}
	u := b.Union(BoundingBox{X0: 5, Y0: 90, X1: 20, Y1: 120})
	want := BoundingBox{X0: 5, Y0: 80, X1: 40, Y1: 120}
	if u != want {
		t.Errorf("expected %v, got %v", want, u)
	}
}
