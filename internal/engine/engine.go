// Package engine adapts github.com/ledongthuc/pdf to the content
// interpreter: pages, media boxes, fonts, form XObjects and operator
// streams.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/content"
)

var (
	ErrOpen      = errors.New("cannot open PDF")
	ErrPageRange = errors.New("page out of range")
	ErrContent   = errors.New("cannot read content stream")
)

// Letter size is used when a page has no /MediaBox.
var defaultMediaBox = rect.Rect{URx: 612, URy: 792}

// Document is an open PDF file.
type Document struct {
	r *pdf.Reader
}

// Open reads the document in ra.
func Open(ra io.ReaderAt, size int64) (doc *Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrOpen, p)
		}
	}()
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return &Document{r: r}, nil
}

// OpenBytes reads a document held in memory.
func OpenBytes(data []byte) (*Document, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// NumPage returns the number of pages.
func (d *Document) NumPage() int {
	return d.r.NumPage()
}

// Page is one page ready for interpretation.
type Page struct {
	Number    int // counting from 0
	MediaBox  rect.Rect
	Resources content.Resources
	Content   content.Stream
}

// Page returns page i, counting from 0.
func (d *Document) Page(i int) (page *Page, err error) {
	defer func() {
		if p := recover(); p != nil {
			page, err = nil, fmt.Errorf("page %d: %w: %v", i, ErrContent, p)
		}
	}()
	if i < 0 || i >= d.r.NumPage() {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, d.r.NumPage())
	}
	p := d.r.Page(i + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, i)
	}

	box := defaultMediaBox
	if mb := inherited(p.V, "MediaBox"); mb.Kind() == pdf.Array {
		box = toRect(mb)
	}
	return &Page{
		Number:    i,
		MediaBox:  box,
		Resources: newResources(p.Resources()),
		Content:   stream{v: p.V.Key("Contents")},
	}, nil
}

func inherited(v pdf.Value, key string) pdf.Value {
	for ; !v.IsNull(); v = v.Key("Parent") {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
	}
	return pdf.Value{}
}

func toRect(v pdf.Value) rect.Rect {
	if v.Len() < 4 {
		return rect.Rect{}
	}
	x0, y0 := v.Index(0).Float64(), v.Index(1).Float64()
	x1, y1 := v.Index(2).Float64(), v.Index(3).Float64()
	return rect.Rect{LLx: min(x0, x1), LLy: min(y0, y1), URx: max(x0, x1), URy: max(y0, y1)}
}

func toMatrix(v pdf.Value) matrix.Matrix {
	if v.Len() != 6 {
		return matrix.Identity
	}
	var m matrix.Matrix
	for i := range 6 {
		m[i] = v.Index(i).Float64()
	}
	return m
}

// stream feeds the operators of a content stream, or an array of them, to
// the interpreter.
type stream struct {
	v pdf.Value
}

type stopScan struct{ err error }

func (s stream) Scan(fn func(content.Op) error) (err error) {
	if s.v.IsNull() {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			if stop, ok := p.(stopScan); ok {
				err = stop.err
				return
			}
			err = fmt.Errorf("%w: %v", ErrContent, p)
		}
	}()
	pdf.Interpret(s.v, func(stk *pdf.Stack, op string) {
		args := make([]content.Operand, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = operand(stk.Pop())
		}
		if err := fn(content.Op{Name: op, Args: args}); err != nil {
			panic(stopScan{err})
		}
	})
	return nil
}

func operand(v pdf.Value) content.Operand {
	switch v.Kind() {
	case pdf.Integer, pdf.Real:
		return v.Float64()
	case pdf.Name:
		return content.Name(v.Name())
	case pdf.String:
		return content.String(v.RawString())
	case pdf.Bool:
		return v.Bool()
	case pdf.Array:
		a := make(content.Array, v.Len())
		for i := range a {
			a[i] = operand(v.Index(i))
		}
		return a
	}
	return nil
}

// resources resolves fonts and forms from a resource dictionary. Fonts are
// decoded once per dictionary.
type resources struct {
	v     pdf.Value
	fonts map[content.Name]content.Font
}

func newResources(v pdf.Value) *resources {
	return &resources{v: v, fonts: make(map[content.Name]content.Font)}
}

func (r *resources) Font(name content.Name) (content.Font, error) {
	if f, ok := r.fonts[name]; ok {
		return f, nil
	}
	fv := r.v.Key("Font").Key(string(name))
	if fv.Kind() != pdf.Dict {
		return nil, fmt.Errorf("font %s: %w", name, content.ErrUnresolvedReference)
	}
	f := newFont(fv)
	r.fonts[name] = f
	return f, nil
}

func (r *resources) Form(name content.Name) (*content.Form, error) {
	xv := r.v.Key("XObject").Key(string(name))
	if xv.Kind() != pdf.Stream {
		return nil, fmt.Errorf("xobject %s: %w", name, content.ErrUnresolvedReference)
	}
	if xv.Key("Subtype").Name() != "Form" {
		return nil, nil
	}
	f := &content.Form{
		ID:      string(name),
		BBox:    toRect(xv.Key("BBox")),
		Matrix:  toMatrix(xv.Key("Matrix")),
		Content: stream{v: xv},
	}
	if res := xv.Key("Resources"); res.Kind() == pdf.Dict {
		f.Resources = newResources(res)
	}
	return f, nil
}

// font decodes strings with the font's ToUnicode map or encoding and looks
// up glyph widths. Composite fonts use two-byte codes.
type font struct {
	enc     pdf.TextEncoding
	twoByte bool
	widths  map[int]float64
	missing float64
}

const defaultWidth = 500

func newFont(fv pdf.Value) *font {
	pf := pdf.Font{V: fv}
	f := &font{enc: pf.Encoder(), widths: make(map[int]float64), missing: defaultWidth}

	if fv.Key("Subtype").Name() == "Type0" {
		f.twoByte = true
		f.missing = 1000
		desc := fv.Key("DescendantFonts").Index(0)
		if dw := desc.Key("DW"); dw.Kind() == pdf.Integer || dw.Kind() == pdf.Real {
			f.missing = dw.Float64()
		}
		readCIDWidths(desc.Key("W"), f.widths)
		return f
	}

	first := pf.FirstChar()
	for i, w := range pf.Widths() {
		f.widths[first+i] = w
	}
	if mw := fv.Key("FontDescriptor").Key("MissingWidth"); mw.Kind() == pdf.Integer || mw.Kind() == pdf.Real {
		if x := mw.Float64(); x > 0 {
			f.missing = x
		}
	}
	return f
}

// readCIDWidths parses a /W array: "c [w1 w2 ...]" and "cfirst clast w"
// entries.
func readCIDWidths(w pdf.Value, out map[int]float64) {
	for i := 0; i+1 < w.Len(); {
		c := int(w.Index(i).Int64())
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for k := range next.Len() {
				out[c+k] = next.Index(k).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			return
		}
		last := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for code := c; code <= last && code-c < 1<<16; code++ {
			out[code] = width
		}
		i += 3
	}
}

func (f *font) Decode(s content.String) []content.Code {
	step := 1
	if f.twoByte {
		step = 2
	}
	var codes []content.Code
	for i := 0; i+step <= len(s); i += step {
		raw := string(s[i : i+step])
		code := int(raw[0])
		if step == 2 {
			code = code<<8 | int(raw[1])
		}
		w, ok := f.widths[code]
		if !ok || w == 0 {
			w = f.missing
		}
		codes = append(codes, content.Code{
			Text:  norm.NFKC.String(f.enc.Decode(raw)),
			Width: w,
			Space: step == 1 && raw[0] == ' ',
		})
	}
	return codes
}
