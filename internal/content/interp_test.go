package content

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
)

type event struct {
	Kind    string
	Keyword int
	Run     int
	Text    string
}

type recorder struct {
	events []event
	glyphs []Glyph
}

func (r *recorder) BeginGroup(rect.Rect, matrix.Matrix) {
	r.events = append(r.events, event{Kind: "begin"})
}

func (r *recorder) EndGroup() {
	r.events = append(r.events, event{Kind: "end"})
}

func (r *recorder) RenderTextRun(run TextRun, seq Array) {
	r.events = append(r.events, event{Kind: "run:" + run.Operator, Keyword: run.Keyword, Run: run.Strings})
}

func (r *recorder) RenderGlyph(g Glyph) GlyphHandle {
	r.events = append(r.events, event{Kind: "glyph", Run: g.Run, Text: g.Text})
	r.glyphs = append(r.glyphs, g)
	return GlyphHandle(len(r.glyphs) - 1)
}

func (r *recorder) runs() []event {
	var out []event
	for _, e := range r.events {
		if len(e.Kind) > 4 && e.Kind[:4] == "run:" {
			out = append(out, e)
		}
	}
	return out
}

// fixedFont gives every code the same width.
type fixedFont struct{ width float64 }

func (f fixedFont) Decode(s String) []Code {
	codes := make([]Code, len(s))
	for i := 0; i < len(s); i++ {
		codes[i] = Code{Text: string(rune(s[i])), Width: f.width, Space: s[i] == ' '}
	}
	return codes
}

type testResources struct {
	fonts map[Name]Font
	forms map[Name]*Form
}

func (r testResources) Font(name Name) (Font, error) {
	if f, ok := r.fonts[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("font %s: %w", name, ErrUnresolvedReference)
}

func (r testResources) Form(name Name) (*Form, error) {
	if f, ok := r.forms[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("xobject %s: %w", name, ErrUnresolvedReference)
}

func op(name string, args ...Operand) Op {
	return Op{Name: name, Args: args}
}

func TestClassify(t *testing.T) {
	for _, name := range []string{"m", "l", "c", "v", "y", "h", "re", "n"} {
		if Classify(name) != Ignored {
			t.Errorf("expected %q to be ignored", name)
		}
	}
	for _, name := range []string{"Tj", "TJ", "Do", "BT", "q", "cm", "f", "S", "xyz"} {
		if Classify(name) != Counted {
			t.Errorf("expected %q to be counted", name)
		}
	}
}

func TestRunPage_KeywordOrdinals(t *testing.T) {
	ops := Ops{
		op("q"),
		op("m", 0.0, 0.0),
		op("l", 10.0, 10.0),
		op("S"),
		op("BT"),
		op("Tf", Name("F1"), 10.0),
		op("Tj", String("ab")),
		op("re", 0.0, 0.0, 1.0, 1.0),
		op("TJ", Array{String("c"), -100.0, String("de")}),
		op("ET"),
		op("Q"),
	}
	res := testResources{fonts: map[Name]Font{"F1": fixedFont{width: 500}}}
	rec := &recorder{}
	n, err := NewInterpreter(rec).RunPage(ops, res, matrix.Identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 8 {
		t.Errorf("expected 8 keywords, got %d", n)
	}

	want := []event{
		{Kind: "run:Tj", Keyword: 5, Run: 1},
		{Kind: "run:TJ", Keyword: 6, Run: 2},
	}
	if diff := cmp.Diff(want, rec.runs()); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	var runIdx []int
	for _, g := range rec.glyphs {
		runIdx = append(runIdx, g.Run)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 1, 1}, runIdx); diff != "" {
		t.Errorf("glyph runs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPage_SubFormFlattening(t *testing.T) {
	inner := &Form{
		ID:     "Fm0",
		BBox:   rect.Rect{URx: 100, URy: 100},
		Matrix: matrix.Identity,
		Content: Ops{
			op("BT"),
			op("Tj", String("x")),
			op("ET"),
			op("m", 1.0, 1.0),
		},
	}
	ops := Ops{
		op("BT"),              // 1
		op("Tj", String("a")), // 2
		op("ET"),              // 3
		op("Do", Name("Fm0")), // 4, nested 5..7
		op("BT"),              // 8
		op("Tj", String("b")), // 9
		op("ET"),              // 10
	}
	res := testResources{forms: map[Name]*Form{"Fm0": inner}}
	rec := &recorder{}
	n, err := NewInterpreter(rec).RunPage(ops, res, matrix.Identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10 keywords, got %d", n)
	}

	runs := rec.runs()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	doOrdinal := 4
	nested := 3
	if runs[1].Keyword != doOrdinal+2 {
		t.Errorf("expected nested Tj at %d, got %d", doOrdinal+2, runs[1].Keyword)
	}
	// After the form the counter stands at the Do's ordinal plus the nested
	// count; BT and Tj follow.
	if runs[2].Keyword != doOrdinal+nested+2 {
		t.Errorf("expected Tj after form at %d, got %d", doOrdinal+nested+2, runs[2].Keyword)
	}
}

func TestRunPage_NestedFormsMonotonic(t *testing.T) {
	leaf := &Form{ID: "leaf", Content: Ops{op("Tj", String("z")), op("Tj", String("y"))}}
	mid := &Form{ID: "mid", Content: Ops{op("Tj", String("m")), op("Do", Name("leaf")), op("Tj", String("n"))}}
	res := testResources{forms: map[Name]*Form{"leaf": leaf, "mid": mid}}
	ops := Ops{op("Tj", String("a")), op("Do", Name("mid")), op("Tj", String("b"))}

	rec := &recorder{}
	n, err := NewInterpreter(rec).RunPage(ops, res, matrix.Identity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []int
	for _, r := range rec.runs() {
		got = append(got, r.Keyword)
	}
	// a=1, Do(mid)=2, m=3, Do(leaf)=4, z=5, y=6, n=7, b=8
	if diff := cmp.Diff([]int{1, 3, 5, 6, 7, 8}, got); diff != "" {
		t.Errorf("ordinals mismatch (-want +got):\n%s", diff)
	}
	if n != 8 {
		t.Errorf("expected 8 keywords, got %d", n)
	}
}

func TestRunPage_UnresolvedForm(t *testing.T) {
	ops := Ops{op("Do", Name("Missing")), op("Tj", String("a"))}
	res := testResources{}

	rec := &recorder{}
	n, err := NewInterpreter(rec).RunPage(ops, res, matrix.Identity)
	if err != nil {
		t.Fatalf("unexpected error in lenient mode: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 keywords, got %d", n)
	}

	in := NewInterpreter(&recorder{})
	in.Strict = true
	_, err = in.RunPage(ops, res, matrix.Identity)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("expected ErrUnresolvedReference in strict mode, got %v", err)
	}
}

func TestRunPage_GlyphGeometry(t *testing.T) {
	ops := Ops{
		op("BT"),
		op("Tf", Name("F1"), 10.0),
		op("Td", 100.0, 700.0),
		op("TJ", Array{String("ab"), -1000.0, String("c")}),
		op("ET"),
	}
	res := testResources{fonts: map[Name]Font{"F1": fixedFont{width: 600}}}
	rec := &recorder{}
	if _, err := NewInterpreter(rec).RunPage(ops, res, matrix.Identity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.glyphs) != 3 {
		t.Fatalf("expected 3 glyphs, got %d", len(rec.glyphs))
	}

	wantX := []float64{100, 106, 122}
	for i, g := range rec.glyphs {
		if math.Abs(g.BBox.LLx-wantX[i]) > 1e-9 {
			t.Errorf("glyph %d: expected x0 %v, got %v", i, wantX[i], g.BBox.LLx)
		}
		if math.Abs(g.BBox.URx-g.BBox.LLx-6) > 1e-9 {
			t.Errorf("glyph %d: expected width 6, got %v", i, g.BBox.URx-g.BBox.LLx)
		}
		if math.Abs(g.BBox.LLy-698) > 1e-9 || math.Abs(g.BBox.URy-708) > 1e-9 {
			t.Errorf("glyph %d: unexpected vertical extent %v..%v", i, g.BBox.LLy, g.BBox.URy)
		}
	}
}

func TestRunPage_GroupsBalanced(t *testing.T) {
	ops := Ops{
		op("BT"),
		op("Tj", String("a")),
		op("BT"), // missing ET before
		op("Tj", String("b")),
	}
	rec := &recorder{}
	if _, err := NewInterpreter(rec).RunPage(ops, testResources{}, matrix.Identity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	depth := 0
	for _, e := range rec.events {
		switch e.Kind {
		case "begin":
			depth++
		case "end":
			depth--
		}
		if depth < 0 {
			t.Fatal("group closed before it was opened")
		}
	}
	if depth != 0 {
		t.Errorf("expected balanced groups, depth %d at end", depth)
	}
}
