package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/pdfloc/internal/layout"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/region"
)

func TestParse_Range(t *testing.T) {
	j, err := Parse("  #pdfloc(ab12,0,4,0,0,0,0,0);#pdfloc(ab12,1,E,E,E,0,0,0) see here ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if j.Type != TypeRange {
		t.Fatalf("expected a range job, got %q", j.Type)
	}
	if j.Range.Comment != "see here" || j.Range.End.Keyword != pdfloc.End {
		t.Errorf("unexpected range %+v", j.Range)
	}
	if diff := cmp.Diff([]int{0, 1}, j.Pages(5)); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Boxes(t *testing.T) {
	j, err := Parse("1,0,0,200,200; 1,0,5,200,205;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []region.Region{
		{Page: 1, BBox: region.BoundingBox{X0: 0, Y0: 0, X1: 200, Y1: 200}},
		{Page: 1, BBox: region.BoundingBox{X0: 0, Y0: 5, X1: 200, Y1: 205}},
	}
	if diff := cmp.Diff(want, j.Boxes); diff != "" {
		t.Errorf("boxes mismatch (-want +got):\n%s", diff)
	}
	if got := FormatBoxes(j.Boxes); got != "1,0,0,200,200;1,0,5,200,205" {
		t.Errorf("FormatBoxes = %q", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrMalformedJob},
		{"1,2,3", ErrMalformedJob},
		{"x,0,0,1,1", ErrMalformedJob},
		{"-1,0,0,1,1", ErrMalformedJob},
		{"0,0,zero,1,1", ErrMalformedJob},
		{";;", ErrMalformedJob},
		{"#pdfloc(ab,0,1,0,0,0,0,0)", pdfloc.ErrMalformedToken},
		{"#PDFLOC(ab,0,1,0,0,0,0,0);nope", pdfloc.ErrMalformedToken},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}
}

func TestScanner(t *testing.T) {
	in := strings.Join([]string{
		"#pdfloc(a,0,1,0,0,0,0,0);#pdfloc(a,0,1,0,3,0,0,0) note",
		"",
		"",
		"0,10,20,30,40",
		"  0,10,5,30,15  ",
		"",
		"2,1,2,3,4;",
		"3,1,2,3,4",
	}, "\n")
	s := NewScanner(strings.NewReader(in))
	var got []string
	for s.Scan() {
		got = append(got, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	want := []string{
		"#pdfloc(a,0,1,0,0,0,0,0);#pdfloc(a,0,1,0,3,0,0,0) note",
		"0,10,20,30,40;0,10,5,30,15",
		"2,1,2,3,4;",
		"3,1,2,3,4",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
}

type fakeConverter struct{}

func (fakeConverter) RangeToRegions(r pdfloc.Range) (region.Set, error) {
	if r.Start.Keyword == 99 {
		return region.Set{}, fmt.Errorf("start: %w", layout.ErrKeyLookup)
	}
	return region.Set{
		Regions: []region.Region{{Page: r.Start.Page, Text: "x"}},
		Note:    r.Comment,
	}, nil
}

func (fakeConverter) BoxesToRange(boxes []region.Region, comment string) (pdfloc.Range, error) {
	tok := pdfloc.Token{Checksum: "00", Page: boxes[0].Page, Keyword: 1}
	return pdfloc.Range{Start: tok, End: tok, Comment: comment}, nil
}

func mustParse(t *testing.T, s string) Job {
	t.Helper()
	j, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return j
}

func TestRun(t *testing.T) {
	jobs := []Job{
		mustParse(t, "#pdfloc(a,2,1,0,0,0,0,0);#pdfloc(a,2,1,0,0,0,0,0) first"),
		mustParse(t, "#pdfloc(a,0,99,0,0,0,0,0);#pdfloc(a,0,1,0,0,0,0,0)"),
		mustParse(t, "2,0,0,1,1"),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	results, err := Run(context.Background(), fakeConverter{}, jobs, log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Failed() || !results[1].Failed() || results[2].Failed() {
		t.Errorf("unexpected failures: %v %v %v", results[0].Err, results[1].Err, results[2].Err)
	}
	if Kind(results[1].Err) != "key-lookup" {
		t.Errorf("expected key-lookup, got %q", Kind(results[1].Err))
	}
	if results[2].Range.Start.Page != 2 {
		t.Errorf("expected box job converted to a range on page 2, got %v", results[2].Range)
	}

	sets := Sets(results)
	if len(sets) != 1 || len(sets[2]) != 2 {
		t.Fatalf("expected two sets on page 2, got %v", sets)
	}
	if sets[2][0].Note != "first" {
		t.Errorf("expected the range set first, got %+v", sets[2][0])
	}
	if diff := cmp.Diff([]int{0, 2}, Pages(jobs, 3)); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Run(ctx, fakeConverter{}, []Job{mustParse(t, "0,0,0,1,1")}, log)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", pdfloc.ErrMalformedToken), "malformed-token"},
		{fmt.Errorf("x: %w", region.ErrTraversalOverrun), "traversal-overrun"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseBatch(t *testing.T) {
	b := ParseBatch([]string{
		"#pdfloc(a,2,1,0,0,0,0,0);#pdfloc(a,2,1,0,0,0,0,0)",
		" nonsense ",
		"2,0,0,1,1",
	})
	if len(b.Jobs) != 2 || len(b.Results) != 3 {
		t.Fatalf("expected 2 jobs in 3 results, got %d/%d", len(b.Jobs), len(b.Results))
	}
	if !errors.Is(b.Results[1].Err, ErrMalformedJob) || b.Results[1].Job.Input != "nonsense" {
		t.Errorf("unexpected parse failure %+v", b.Results[1])
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	converted, err := Run(context.Background(), fakeConverter{}, b.Jobs, log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := b.Merge(converted)
	var types []Type
	for _, r := range results {
		types = append(types, r.Job.Type)
	}
	if diff := cmp.Diff([]Type{TypeRange, "", TypeBoxes}, types); diff != "" {
		t.Errorf("merged order mismatch (-want +got):\n%s", diff)
	}
	if results[2].Range.Start.Page != 2 {
		t.Errorf("expected the box job result in place, got %+v", results[2])
	}
}
