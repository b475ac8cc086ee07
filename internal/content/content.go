// Package content interprets page content streams and reports text runs
// and glyphs to a Device, numbering operators as it goes.
package content

import (
	"errors"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
)

// ErrUnresolvedReference is returned when a named resource is missing.
var ErrUnresolvedReference = errors.New("unresolved reference")

// Operand is one operator argument: float64, Name, String or Array.
type Operand any

// Name is a PDF name operand without the leading slash.
type Name string

// String holds the raw bytes of a string operand.
type String string

// Array is an array operand, as used by TJ.
type Array []Operand

// Op is one operator invocation with its operands in stream order.
type Op struct {
	Name string
	Args []Operand
}

// Stream delivers the operators of a content stream in order.
type Stream interface {
	Scan(fn func(Op) error) error
}

// Ops is an in-memory Stream.
type Ops []Op

// Scan calls fn for each operator and stops at the first error.
func (ops Ops) Scan(fn func(Op) error) error {
	for _, op := range ops {
		if err := fn(op); err != nil {
			return err
		}
	}
	return nil
}

// Code is one decoded character code of a string operand.
type Code struct {
	Text  string
	Width float64 // glyph space, thousandths of text space
	Space bool    // single-byte code 32, subject to word spacing
}

// Font splits string operands into character codes.
type Font interface {
	Decode(s String) []Code
}

// Form is a form XObject ready to be interpreted.
type Form struct {
	ID        string
	BBox      rect.Rect
	Matrix    matrix.Matrix
	Resources Resources // nil means inherit from the invoking stream
	Content   Stream
}

// Resources resolves names used by a content stream.
//
// Form returns (nil, nil) for XObjects that are not forms, and an error
// wrapping ErrUnresolvedReference if the name is not defined.
type Resources interface {
	Font(name Name) (Font, error)
	Form(name Name) (*Form, error)
}

// TextRun describes one show-text invocation.
type TextRun struct {
	Keyword  int    // flattened keyword ordinal of the operator
	Operator string // Tj, TJ, ' or "
	Strings  int    // number of string operands
}

// Glyph is one rendered glyph in default user space.
type Glyph struct {
	Run   int // index of the string operand within the text run
	Index int // index within that string
	BBox  rect.Rect
	Text  string
}

// GlyphHandle identifies a glyph recorded by a Device.
type GlyphHandle int

// Device receives rendering callbacks in emission order.
type Device interface {
	BeginGroup(box rect.Rect, m matrix.Matrix)
	EndGroup()
	RenderTextRun(run TextRun, seq Array)
	RenderGlyph(g Glyph) GlyphHandle
}
