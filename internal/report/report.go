// Package report writes conversion results as text, JSON or DOCX.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/region"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatDOCX Format = "docx"
)

var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatDOCX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatDOCX
}

// Entry is the JSON form of one job result.
type Entry struct {
	Input   string   `json:"input"`
	Type    job.Type `json:"type"`
	Regions []Region `json:"regions,omitempty"`
	Range   string   `json:"range,omitempty"`
	Comment string   `json:"comment,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Region is the JSON form of a region.
type Region struct {
	Page int        `json:"page"`
	BBox [4]float64 `json:"bbox"`
	Text string     `json:"text,omitempty"`
}

// Entries converts results for JSON encoding.
func Entries(results []job.Result) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		e := Entry{Input: r.Job.Input, Type: r.Job.Type}
		if r.Failed() {
			e.Kind = job.Kind(r.Err)
			e.Error = r.Err.Error()
			entries = append(entries, e)
			continue
		}
		switch r.Job.Type {
		case job.TypeRange:
			for _, reg := range r.Set.Regions {
				b := reg.BBox
				e.Regions = append(e.Regions, Region{Page: reg.Page, BBox: [4]float64{b.X0, b.Y0, b.X1, b.Y1}, Text: reg.Text})
			}
			e.Comment = r.Set.Note
		case job.TypeBoxes:
			e.Range = r.Range.String()
		}
		entries = append(entries, e)
	}
	return entries
}

// Write encodes results to w.
func Write(w io.Writer, f Format, results []job.Result) error {
	switch f {
	case FormatText:
		return writeText(w, results)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Entries(results))
	case FormatDOCX:
		return writeDOCX(w, results)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Line formats one region the way the text report prints it.
func Line(r region.Region) string {
	return fmt.Sprintf("Page %d, '%s', %s", r.Page, r.BBox, r.Text)
}

func writeText(w io.Writer, results []job.Result) error {
	var b strings.Builder
	for _, r := range results {
		if r.Failed() {
			fmt.Fprintf(&b, "Error converting %s. Cause: %s: %v\n\n", r.Job.Input, job.Kind(r.Err), r.Err)
			continue
		}
		switch r.Job.Type {
		case job.TypeRange:
			for _, reg := range r.Set.Regions {
				b.WriteString(Line(reg))
				b.WriteByte('\n')
			}
		case job.TypeBoxes:
			b.WriteString(r.Range.String())
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeDOCX(w io.Writer, results []job.Result) error {
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().Style("Heading1").AddText("Locations")

	for _, r := range results {
		doc.AddParagraph().Style("Heading2").AddText(r.Job.Input)
		if r.Failed() {
			doc.AddParagraph().AddText(fmt.Sprintf("%s: %v", job.Kind(r.Err), r.Err)).Color("C00000")
			continue
		}
		switch r.Job.Type {
		case job.TypeRange:
			if r.Set.Note != "" {
				doc.AddParagraph().AddText(r.Set.Note).Italic()
			}
			for _, reg := range r.Set.Regions {
				p := doc.AddParagraph()
				p.AddText(fmt.Sprintf("Page %d %s ", reg.Page, reg.BBox)).Bold()
				p.AddText(reg.Text)
			}
		case job.TypeBoxes:
			doc.AddParagraph().AddText(r.Range.String())
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
