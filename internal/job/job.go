// Package job parses conversion jobs and runs them in batches.
//
// A job is either a pdfloc range
//
//	#pdfloc(abcd,0,4,0,0,0,0,0);#pdfloc(abcd,0,9,0,E,0,0,0) optional comment
//
// or a list of bounding boxes, one per line of the area to cover:
//
//	0,72,710,300,698;0,72,696,180,684
//
// Box fields are page, left, top, right, bottom.
package job

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/region"
)

// ErrMalformedJob is returned for job text that is neither a range nor a
// list of boxes.
var ErrMalformedJob = errors.New("malformed job")

// Type tells range jobs from box jobs.
type Type string

const (
	TypeRange Type = "range"
	TypeBoxes Type = "boxes"
)

// Job is one parsed conversion request.
type Job struct {
	Input string
	Type  Type
	Range pdfloc.Range    // TypeRange
	Boxes []region.Region // TypeBoxes
}

// Parse parses one job.
func Parse(s string) (Job, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Job{}, fmt.Errorf("%w: empty", ErrMalformedJob)
	}
	if len(s) >= 7 && strings.EqualFold(s[:7], "#pdfloc") {
		r, err := pdfloc.ParseRange(s)
		if err != nil {
			return Job{}, err
		}
		return Job{Input: s, Type: TypeRange, Range: r}, nil
	}

	boxes, err := ParseBoxes(s)
	if err != nil {
		return Job{}, err
	}
	return Job{Input: s, Type: TypeBoxes, Boxes: boxes}, nil
}

// ParseBoxes parses "page,left,top,right,bottom" groups separated by ';'.
// Empty groups are ignored.
func ParseBoxes(s string) ([]region.Region, error) {
	var boxes []region.Region
	for _, group := range strings.Split(s, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		fields := strings.Split(group, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w: box %q has %d fields, want 5", ErrMalformedJob, group, len(fields))
		}
		page, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || page < 0 {
			return nil, fmt.Errorf("%w: page %q", ErrMalformedJob, fields[0])
		}
		var v [4]float64
		for i, f := range fields[1:] {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: box %q: %v", ErrMalformedJob, group, err)
			}
		}
		boxes = append(boxes, region.Region{
			Page: page,
			BBox: region.BoundingBox{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]},
		})
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("%w: no boxes in %q", ErrMalformedJob, s)
	}
	return boxes, nil
}

// FormatBoxes writes boxes in the form ParseBoxes reads.
func FormatBoxes(boxes []region.Region) string {
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = fmt.Sprintf("%d,%g,%g,%g,%g", b.Page, b.BBox.X0, b.BBox.Y0, b.BBox.X1, b.BBox.Y1)
	}
	return strings.Join(parts, ";")
}

// Pages returns the pages below numPages the job touches, for restricting
// the build pass.
func (j Job) Pages(numPages int) []int {
	if j.Type == TypeRange {
		return j.Range.Pages(numPages)
	}
	var pages []int
	for _, b := range j.Boxes {
		if b.Page < numPages {
			pages = append(pages, b.Page)
		}
	}
	return pages
}

func (j Job) String() string {
	return j.Input
}
