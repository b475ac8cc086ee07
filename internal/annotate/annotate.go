// Package annotate appends highlight annotations to a PDF file as an
// incremental update. Bytes of the original file are never changed.
package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/dgallion1/pdfloc/internal/comment"
	"github.com/dgallion1/pdfloc/internal/objgraph"
	"github.com/dgallion1/pdfloc/internal/region"
)

// QuadHeightCap is the largest height of a single highlight quadrilateral.
const QuadHeightCap = 20

var (
	ErrUnknownPage    = errors.New("page not in document")
	ErrEmptyRegionSet = errors.New("region set has no regions")
)

// nameSpace seeds the /NM identifiers of generated annotations.
var nameSpace = uuid.MustParse("7b1f4c52-5e0a-4e53-9b7e-6d2f0c9a8e41")

// Document is the read-only view of the original file the writer needs.
// *objgraph.Document implements it.
type Document interface {
	Len() int64
	StartXRef() int64
	MaxObjectNumber() int
	Root() (objgraph.Ref, error)
	Info() (objgraph.Ref, bool)
	ID() objgraph.Array
	Page(i int) (objgraph.Ref, objgraph.Dict, error)
	Resolve(obj objgraph.Object) (objgraph.Object, error)
}

// Writer produces incremental updates for one document.
type Writer struct {
	doc Document

	// Author goes into /T when set.
	Author string
	// Comments renders notes; nil writes them verbatim without /RC.
	Comments *comment.Renderer
	// Color is the RGB highlight color.
	Color [3]float64
}

// Result describes a written update.
type Result struct {
	Pages       int
	Annotations int
	Objects     []objgraph.Ref // in emission order
	XRef        int64          // offset of the new xref section in the whole file
	Size        int            // new trailer /Size
}

func NewWriter(doc Document) *Writer {
	return &Writer{doc: doc, Color: [3]float64{1, 1, 0}}
}

type pageUpdate struct {
	num    int
	ref    objgraph.Ref
	dict   objgraph.Dict
	annots objgraph.Array
	sets   []region.Set
	array  objgraph.Ref
	ids    []objgraph.Ref
}

// Write appends the update for sets, keyed by 0-based page number, to out.
// All checks run before anything is written; the update is written with a
// single call to out.Write.
func (w *Writer) Write(out io.Writer, sets map[int][]region.Set) (Result, error) {
	data, res, err := w.Update(sets)
	if err != nil {
		return Result{}, err
	}
	if _, err := out.Write(data); err != nil {
		return Result{}, fmt.Errorf("write update: %w", err)
	}
	return res, nil
}

// Update renders the update for sets into memory.
func (w *Writer) Update(sets map[int][]region.Set) ([]byte, Result, error) {
	pages, err := w.plan(sets)
	if err != nil {
		return nil, Result{}, err
	}
	root, err := w.doc.Root()
	if err != nil {
		return nil, Result{}, err
	}

	var buf bytes.Buffer
	buf.WriteByte('\n')
	base := w.doc.Len()
	var res Result
	var offsets []int64

	emit := func(ref objgraph.Ref, obj objgraph.Object) {
		offsets = append(offsets, base+int64(buf.Len()))
		res.Objects = append(res.Objects, ref)
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		buf.Write(objgraph.Append(nil, obj))
		buf.WriteString("\nendobj\n")
	}

	for _, p := range pages {
		page := p.dict.Clone()
		page["Annots"] = p.array
		emit(p.ref, page)

		arr := slices.Clone(p.annots)
		for _, id := range p.ids {
			arr = append(arr, id)
		}
		emit(p.array, arr)

		for i, s := range p.sets {
			annot, err := w.annotation(p.ref, p.num, i, s)
			if err != nil {
				return nil, Result{}, err
			}
			emit(p.ids[i], annot)
		}
		res.Annotations += len(p.sets)
	}
	res.Pages = len(pages)

	res.Size = w.doc.MaxObjectNumber() + 1
	for _, ref := range res.Objects {
		res.Size = max(res.Size, ref.Num+1)
	}

	res.XRef = base + int64(buf.Len())
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for i, ref := range res.Objects {
		fmt.Fprintf(&buf, "%d 1\n%010d %05d n \n", ref.Num, offsets[i], ref.Gen)
	}

	trailer := objgraph.Dict{
		"Size": objgraph.Integer(res.Size),
		"Root": root,
		"Prev": objgraph.Integer(w.doc.StartXRef()),
	}
	if info, ok := w.doc.Info(); ok {
		trailer["Info"] = info
	}
	if id := w.doc.ID(); len(id) > 0 {
		trailer["ID"] = id
	}
	buf.WriteString("trailer\n")
	buf.Write(objgraph.Append(nil, trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", res.XRef)

	return buf.Bytes(), res, nil
}

// plan validates sets and allocates object numbers in emission order.
func (w *Writer) plan(sets map[int][]region.Set) ([]*pageUpdate, error) {
	nums := make([]int, 0, len(sets))
	for n, s := range sets {
		if len(s) > 0 {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)

	next := w.doc.MaxObjectNumber() + 1
	var pages []*pageUpdate
	for _, n := range nums {
		ref, dict, err := w.doc.Page(n)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrUnknownPage, n, err)
		}
		for i, s := range sets[n] {
			if len(s.Regions) == 0 {
				return nil, fmt.Errorf("%w: page %d set %d", ErrEmptyRegionSet, n, i)
			}
		}
		annots, err := w.existingAnnots(dict)
		if err != nil {
			return nil, fmt.Errorf("page %d annotations: %w", n, err)
		}

		p := &pageUpdate{num: n, ref: ref, dict: dict, annots: annots, sets: sets[n]}
		p.array = objgraph.Ref{Num: next}
		next++
		for range p.sets {
			p.ids = append(p.ids, objgraph.Ref{Num: next})
			next++
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (w *Writer) existingAnnots(page objgraph.Dict) (objgraph.Array, error) {
	v, ok := page["Annots"]
	if !ok {
		return nil, nil
	}
	obj, err := w.doc.Resolve(v)
	if err != nil {
		return nil, err
	}
	arr, _ := obj.(objgraph.Array)
	return arr, nil
}

func (w *Writer) annotation(page objgraph.Ref, pageNum, index int, s region.Set) (objgraph.Dict, error) {
	note := s.Comment()
	rect := s.Bounds()

	var quads objgraph.Array
	for _, r := range s.Regions {
		for _, x := range Quad(r.BBox) {
			quads = append(quads, objgraph.Real(x))
		}
	}

	d := objgraph.Dict{
		"Type":       objgraph.Name("Annot"),
		"Subtype":    objgraph.Name("Highlight"),
		"P":          page,
		"F":          objgraph.Integer(4),
		"C":          objgraph.Array{objgraph.Real(w.Color[0]), objgraph.Real(w.Color[1]), objgraph.Real(w.Color[2])},
		"Rect":       objgraph.Array{objgraph.Real(rect.X0), objgraph.Real(rect.Y0), objgraph.Real(rect.X1), objgraph.Real(rect.Y1)},
		"QuadPoints": quads,
		"NM":         objgraph.String(annotationName(pageNum, index, note, quads)),
	}

	contents := note
	if w.Comments != nil {
		c, err := w.Comments.Render(note)
		if err != nil {
			return nil, err
		}
		contents = c.Plain
		if c.Rich != "" {
			d["RC"] = TextString(c.Rich)
		}
	}
	d["Contents"] = TextString(contents)
	if w.Author != "" {
		d["T"] = TextString(w.Author)
	}
	return d, nil
}

// Quad returns the quadrilateral of b in /QuadPoints order: upper left,
// upper right, lower left, lower right. Boxes taller than QuadHeightCap
// have their top edge lowered.
func Quad(b region.BoundingBox) [8]float64 {
	x0, x1 := min(b.X0, b.X1), max(b.X0, b.X1)
	bottom, top := b.Bottom(), b.Top()
	if top-bottom > QuadHeightCap {
		top = bottom + QuadHeightCap
	}
	return [8]float64{x0, top, x1, top, x0, bottom, x1, bottom}
}

func annotationName(page, index int, note string, quads objgraph.Array) string {
	key := fmt.Appendf(nil, "%d/%d/%s/", page, index, note)
	key = objgraph.Append(key, quads)
	return uuid.NewSHA1(nameSpace, key).String()
}

// TextString encodes s as a PDF text string: ASCII as is, anything else as
// UTF-16BE with a byte order mark.
func TextString(s string) objgraph.String {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			enc, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(s)
			if err != nil {
				break
			}
			return objgraph.String(enc)
		}
	}
	return objgraph.String(s)
}
