package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/layout"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/region"
)

func results() []job.Result {
	tok := pdfloc.Token{Checksum: "ab", Page: 0, Keyword: 4}
	return []job.Result{
		{
			Job: job.Job{Input: "range one", Type: job.TypeRange},
			Set: region.Set{Note: "look", Regions: []region.Region{
				{Page: 0, BBox: region.BoundingBox{X0: 10, Y0: 90, X1: 35, Y1: 100}, Text: "abc"},
				{Page: 0, BBox: region.BoundingBox{X0: 10, Y0: 78, X1: 20.5, Y1: 88}, Text: "de"},
			}},
		},
		{
			Job: job.Job{Input: "range two", Type: job.TypeRange},
			Err: fmt.Errorf("start: %w", layout.ErrKeyLookup),
		},
		{
			Job:   job.Job{Input: "0,1,2,3,4", Type: job.TypeBoxes},
			Range: pdfloc.Range{Start: tok, End: tok},
		},
	}
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatText, results()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "Page 0, '(10, 90, 35, 100)', abc\n" +
		"Page 0, '(10, 78, 20.5, 88)', de\n" +
		"\n" +
		"Error converting range two. Cause: key-lookup: start: location not found\n" +
		"\n" +
		"#pdfloc(ab,0,4,0,0,0,0,0);#pdfloc(ab,0,4,0,0,0,0,0)\n" +
		"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, results()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []Entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Comment != "look" || len(got[0].Regions) != 2 || got[0].Regions[1].BBox != [4]float64{10, 78, 20.5, 88} {
		t.Errorf("unexpected range entry %+v", got[0])
	}
	if got[1].Kind != "key-lookup" || got[1].Error == "" {
		t.Errorf("unexpected error entry %+v", got[1])
	}
	if !strings.HasPrefix(got[2].Range, "#pdfloc(ab,0,4,") {
		t.Errorf("unexpected box entry %+v", got[2])
	}
}

func TestWrite_DOCX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatDOCX, results()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := docx.Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("docx.Parse: %v", err)
	}

	var paras []string
	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		var b strings.Builder
		for _, child := range p.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			for _, rc := range run.Children {
				if t, ok := rc.(*docx.Text); ok {
					b.WriteString(t.Text)
				}
			}
		}
		paras = append(paras, b.String())
	}
	all := strings.Join(paras, "\n")
	for _, want := range []string{"range one", "look", "abc", "key-lookup", "#pdfloc(ab,0,4,0,0,0,0,0)"} {
		if !strings.Contains(all, want) {
			t.Errorf("expected %q in document text:\n%s", want, all)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %q, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if !FormatDOCX.Binary() || FormatText.Binary() {
		t.Error("only docx is binary")
	}
}
