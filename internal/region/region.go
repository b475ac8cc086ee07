// Package region turns glyph locations into page regions.
package region

import (
	"fmt"
	"math"
	"strings"
)

// BoundingBox is an axis-aligned box in PDF user space.
type BoundingBox struct {
	X0, Y0, X1, Y1 float64
}

func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height is the distance between the top and the bottom edge.
func (b BoundingBox) Height() float64 {
	return math.Abs(b.Y0 - b.Y1)
}

func (b BoundingBox) Top() float64 {
	return max(b.Y0, b.Y1)
}

func (b BoundingBox) Bottom() float64 {
	return min(b.Y0, b.Y1)
}

// Union returns the smallest box containing b and o, normalised so that
// (X0, Y0) is the lower-left corner.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: min(b.X0, b.X1, o.X0, o.X1),
		Y0: min(b.Bottom(), o.Bottom()),
		X1: max(b.X0, b.X1, o.X0, o.X1),
		Y1: max(b.Top(), o.Top()),
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", b.X0, b.Y0, b.X1, b.Y1)
}

// Region is a box on one page with the text it covers.
type Region struct {
	BBox BoundingBox
	Page int
	Text string
}

// Set is an ordered, non-empty group of regions that is annotated as one.
type Set struct {
	Regions []Region
	Note    string
}

// Page returns the page of the first region.
func (s Set) Page() int {
	if len(s.Regions) == 0 {
		return 0
	}
	return s.Regions[0].Page
}

// Comment returns the explicit note, or the regions' text joined by newlines.
func (s Set) Comment() string {
	if s.Note != "" {
		return s.Note
	}
	var parts []string
	for _, r := range s.Regions {
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Bounds returns the union of all region boxes.
func (s Set) Bounds() BoundingBox {
	if len(s.Regions) == 0 {
		return BoundingBox{}
	}
	out := s.Regions[0].BBox.Union(s.Regions[0].BBox)
	for _, r := range s.Regions[1:] {
		out = out.Union(r.BBox)
	}
	return out
}
