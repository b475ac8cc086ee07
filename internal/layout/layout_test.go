package layout

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/content"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
)

type font struct{}

func (font) Decode(s content.String) []content.Code {
	codes := make([]content.Code, len(s))
	for i := 0; i < len(s); i++ {
		codes[i] = content.Code{Text: string(rune(s[i])), Width: 500}
	}
	return codes
}

type resources struct {
	forms map[content.Name]*content.Form
}

func (resources) Font(content.Name) (content.Font, error) { return font{}, nil }

func (r resources) Form(name content.Name) (*content.Form, error) {
	if f, ok := r.forms[name]; ok {
		return f, nil
	}
	return nil, content.ErrUnresolvedReference
}

func op(name string, args ...content.Operand) content.Op {
	return content.Op{Name: name, Args: args}
}

// build renders one page of ops as page 0.
func build(t *testing.T, ops content.Ops, res content.Resources) *Builder {
	t.Helper()
	b := NewBuilder()
	b.BeginPage(0, rect.Rect{URx: 612, URy: 792})
	if _, err := content.NewInterpreter(b).RunPage(ops, res, matrix.Identity); err != nil {
		t.Fatalf("RunPage: %v", err)
	}
	b.EndPage()
	return b
}

func tok(page int, kw, line, glyph pdfloc.Ordinal) pdfloc.Token {
	return pdfloc.Token{Page: page, Keyword: kw, Line: line, Glyph: glyph}
}

func TestBuilder_TreeShape(t *testing.T) {
	ops := content.Ops{
		op("BT"),
		op("Tf", content.Name("F1"), 10.0),
		op("Td", 10.0, 90.0),
		op("Tj", content.String("ab")),
		op("Td", 0.0, -12.0),
		op("TJ", content.Array{content.String("c"), -200.0, content.String("d")}),
		op("ET"),
	}
	b := build(t, ops, resources{})
	tree := b.Tree()

	pages := tree.Pages()
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	var kinds []Kind
	tree.Walk(pages[0], func(_ NodeID, n *Node) bool {
		kinds = append(kinds, n.Kind)
		return true
	})
	want := []Kind{KindPage, KindGroup, KindLine, KindGlyph, KindGlyph, KindLine, KindGlyph, KindGlyph}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	if got := tree.Text(pages[0]); got != "abcd" {
		t.Errorf("expected text %q, got %q", "abcd", got)
	}

	group := tree.Node(tree.Node(pages[0]).Children[0])
	if group.BBox.LLx != 10 || group.BBox.URy != 98 {
		t.Errorf("group box not the union of its lines: %+v", group.BBox)
	}
}

func TestIndex_Lookup(t *testing.T) {
	ops := content.Ops{
		op("BT"),
		op("Tf", content.Name("F1"), 10.0),
		op("Tj", content.String("ab")),
		op("TJ", content.Array{content.String("c"), -200.0, content.String("de")}),
		op("ET"),
	}
	b := build(t, ops, resources{})
	tree, idx := b.Tree(), b.Index()

	tests := []struct {
		name string
		tok  pdfloc.Token
		want string
	}{
		{"first glyph", tok(0, 3, 0, 0), "a"},
		{"second run", tok(0, 4, 1, 1), "e"},
		{"last keyword", tok(0, pdfloc.End, 0, 0), "c"},
		{"last line", tok(0, 4, pdfloc.End, 0), "d"},
		{"last glyph", tok(0, 3, 0, pdfloc.End), "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := idx.Lookup(tt.tok)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got := tree.Node(id).Text; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	for _, bad := range []pdfloc.Token{
		tok(1, 3, 0, 0),
		tok(0, 2, 0, 0),
		tok(0, 3, 1, 0),
		tok(0, 3, 0, 2),
	} {
		if _, err := idx.Lookup(bad); !errors.Is(err, ErrKeyLookup) {
			t.Errorf("%v: expected ErrKeyLookup, got %v", bad, err)
		}
	}
}

func TestIndex_Address(t *testing.T) {
	ops := content.Ops{op("BT"), op("TJ", content.Array{content.String("x"), content.String("yz")}), op("ET")}
	b := build(t, ops, resources{})
	id, err := b.Index().Lookup(tok(0, 2, 1, 1))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	got, ok := b.Index().Address(id)
	if !ok {
		t.Fatal("expected address for glyph")
	}
	want := Address{Page: 0, Keyword: 2, Line: 1, Glyph: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("address mismatch (-want +got):\n%s", diff)
	}
}

func TestTree_NextTreatsLinesAsLeaves(t *testing.T) {
	ops := content.Ops{
		op("BT"),
		op("Tj", content.String("ab")),
		op("Tj", content.String("c")),
		op("ET"),
	}
	b := build(t, ops, resources{})
	tree := b.Tree()
	leaf := func(n *Node) bool { return n.Kind == KindLine }

	var kinds []Kind
	for id := tree.Next(tree.Root(), leaf); id != None; id = tree.Next(id, leaf) {
		kinds = append(kinds, tree.Node(id).Kind)
	}
	want := []Kind{KindPage, KindGroup, KindLine, KindLine}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("walk mismatch (-want +got):\n%s", diff)
	}
}

func TestTree_PageOf(t *testing.T) {
	b := build(t, content.Ops{op("Tj", content.String("a"))}, resources{})
	tree := b.Tree()
	id, err := b.Index().Lookup(tok(0, 1, 0, 0))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	page, err := tree.PageOf(id)
	if err != nil {
		t.Fatalf("PageOf: %v", err)
	}
	if tree.Node(page).Kind != KindPage {
		t.Errorf("expected page node, got %v", tree.Node(page).Kind)
	}
	if _, err := tree.PageOf(tree.Root()); !errors.Is(err, ErrDetachedNode) {
		t.Errorf("expected ErrDetachedNode, got %v", err)
	}
}

func TestBuilder_FormGroup(t *testing.T) {
	form := &content.Form{
		ID:      "Fm0",
		BBox:    rect.Rect{URx: 50, URy: 50},
		Matrix:  matrix.Translate(100, 100),
		Content: content.Ops{op("BT"), op("Tf", content.Name("F1"), 10.0), op("Tj", content.String("q")), op("ET")},
	}
	ops := content.Ops{op("Do", content.Name("Fm0"))}
	b := build(t, ops, resources{forms: map[content.Name]*content.Form{"Fm0": form}})

	id, err := b.Index().Lookup(tok(0, 4, 0, 0))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	g := b.Tree().Node(id)
	if g.BBox.LLx != 100 {
		t.Errorf("expected form glyph at x=100, got %v", g.BBox.LLx)
	}
}
