package objgraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrMalformed  = errors.New("malformed PDF")
	ErrXRefStream = errors.New("cross-reference streams are not supported")
	ErrEncrypted  = errors.New("encrypted PDF files are not supported")
	ErrNoObject   = errors.New("object not found")
	ErrPageRange  = errors.New("page out of range")
)

const maxPrevChain = 1024

type xrefEntry struct {
	offset int64
	gen    int
	free   bool
}

// Document is a read-only view of a PDF file's objects.
type Document struct {
	data      []byte
	xref      map[int]xrefEntry
	maxNum    int
	trailer   Dict
	startxref int64

	pages []Ref
}

// Read reads a whole PDF file.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return Parse(data)
}

// Parse indexes the objects of data. data is retained and must not be
// modified afterwards.
func Parse(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	d := &Document{data: data, xref: make(map[int]xrefEntry)}

	start, err := d.findStartXRef()
	if err != nil {
		return nil, err
	}
	d.startxref = start

	seen := make(map[int64]bool)
	for off, first := start, true; ; first = false {
		if seen[off] || len(seen) >= maxPrevChain {
			return nil, fmt.Errorf("%w: /Prev chain loops at %d", ErrMalformed, off)
		}
		seen[off] = true

		trailer, err := d.readSection(off)
		if err != nil {
			return nil, err
		}
		if first {
			d.trailer = trailer
		}
		prev, ok := trailer["Prev"].(Integer)
		if !ok {
			break
		}
		off = int64(prev)
	}

	if _, ok := d.trailer["Encrypt"]; ok {
		return nil, ErrEncrypted
	}
	if size, ok := d.trailer["Size"].(Integer); ok && int(size)-1 > d.maxNum {
		d.maxNum = int(size) - 1
	}
	return d, nil
}

func (d *Document) findStartXRef() (int64, error) {
	i := bytes.LastIndex(d.data, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("%w: missing startxref", ErrMalformed)
	}
	l := &lexer{data: d.data, pos: i + len("startxref")}
	off, err := l.integer()
	if err != nil {
		return 0, fmt.Errorf("startxref: %w", err)
	}
	if off < 0 || off >= int64(len(d.data)) {
		return 0, fmt.Errorf("%w: startxref %d outside file", ErrMalformed, off)
	}
	return off, nil
}

// readSection reads one xref table and its trailer. Entries already known
// from a newer section are kept, free ones included.
func (d *Document) readSection(off int64) (Dict, error) {
	if off < 0 || off >= int64(len(d.data)) {
		return nil, fmt.Errorf("%w: xref offset %d outside file", ErrMalformed, off)
	}
	l := &lexer{data: d.data, pos: int(off)}
	tok, err := l.next()
	if err != nil {
		return nil, err
	}
	if tok.kind == tokInteger {
		return nil, fmt.Errorf("%w: at offset %d", ErrXRefStream, off)
	}
	if tok.kind != tokKeyword || tok.text != "xref" {
		return nil, fmt.Errorf("%w: no xref table at offset %d", ErrMalformed, off)
	}

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokKeyword && tok.text == "trailer" {
			break
		}
		if tok.kind != tokInteger {
			return nil, fmt.Errorf("%w: bad xref subsection header %q", ErrMalformed, tok.text)
		}
		count, err := l.integer()
		if err != nil {
			return nil, fmt.Errorf("xref subsection: %w", err)
		}
		for k := range int(count) {
			offset, err1 := l.integer()
			gen, err2 := l.integer()
			kind, err3 := l.next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("xref entry: %w", err)
			}
			num := int(tok.i) + k
			if num > d.maxNum {
				d.maxNum = num
			}
			if kind.kind != tokKeyword || (kind.text != "n" && kind.text != "f") {
				return nil, fmt.Errorf("%w: bad xref entry type %q", ErrMalformed, kind.text)
			}
			if _, known := d.xref[num]; !known {
				d.xref[num] = xrefEntry{offset: offset, gen: int(gen), free: kind.text == "f"}
			}
		}
	}

	trailer, err := l.object()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := trailer.(Dict)
	if !ok {
		return nil, fmt.Errorf("%w: trailer is not a dictionary", ErrMalformed)
	}
	return dict, nil
}

// Len returns the file size in bytes.
func (d *Document) Len() int64 {
	return int64(len(d.data))
}

// StartXRef returns the offset of the newest cross-reference section.
func (d *Document) StartXRef() int64 {
	return d.startxref
}

// MaxObjectNumber returns the highest object number in use or declared by
// the trailer's /Size.
func (d *Document) MaxObjectNumber() int {
	return d.maxNum
}

// Trailer returns the newest trailer dictionary.
func (d *Document) Trailer() Dict {
	return d.trailer
}

// Root returns the reference to the document catalog.
func (d *Document) Root() (Ref, error) {
	r, ok := d.trailer["Root"].(Ref)
	if !ok {
		return Ref{}, fmt.Errorf("%w: trailer has no /Root", ErrMalformed)
	}
	return r, nil
}

// Info returns the document information dictionary reference, if any.
func (d *Document) Info() (Ref, bool) {
	r, ok := d.trailer["Info"].(Ref)
	return r, ok
}

// ID returns the trailer's /ID array, if any.
func (d *Document) ID() Array {
	id, _ := d.trailer["ID"].(Array)
	return id
}

// Object loads the object with the given reference.
func (d *Document) Object(ref Ref) (Object, error) {
	e, ok := d.xref[ref.Num]
	if !ok || e.free || e.gen != ref.Gen {
		return nil, fmt.Errorf("%w: %s", ErrNoObject, ref)
	}
	if e.offset < 0 || e.offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("%w: object %s at offset %d outside file", ErrMalformed, ref, e.offset)
	}
	l := &lexer{data: d.data, pos: int(e.offset)}
	num, err1 := l.integer()
	gen, err2 := l.integer()
	err3 := l.expectKeyword("obj")
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if int(num) != ref.Num || int(gen) != ref.Gen {
		return nil, fmt.Errorf("%w: expected object %s at offset %d, found %d %d", ErrMalformed, ref, e.offset, num, gen)
	}
	obj, err := l.object()
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if dict, ok := obj.(Dict); ok {
		save := l.pos
		if tok, err := l.next(); err == nil && tok.kind == tokKeyword && tok.text == "stream" {
			return &Stream{Dict: dict, Offset: int64(l.pos)}, nil
		}
		l.pos = save
	}
	return obj, nil
}

// Resolve follows indirect references until obj is a direct object.
func (d *Document) Resolve(obj Object) (Object, error) {
	for range 32 {
		ref, ok := obj.(Ref)
		if !ok {
			return obj, nil
		}
		var err error
		obj, err = d.Object(ref)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: reference chain too long", ErrMalformed)
}

// GetDict resolves obj and returns it as a dictionary. Streams yield their
// dictionary.
func (d *Document) GetDict(obj Object) (Dict, error) {
	obj, err := d.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch x := obj.(type) {
	case Dict:
		return x, nil
	case *Stream:
		return x.Dict, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected dictionary, found %T", ErrMalformed, obj)
}

// NumPages returns the number of leaves in the page tree.
func (d *Document) NumPages() (int, error) {
	pages, err := d.Pages()
	return len(pages), err
}

// Pages returns the page object references in page order.
func (d *Document) Pages() ([]Ref, error) {
	if d.pages != nil {
		return d.pages, nil
	}
	root, err := d.Root()
	if err != nil {
		return nil, err
	}
	catalog, err := d.GetDict(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	top, ok := catalog["Pages"].(Ref)
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no /Pages reference", ErrMalformed)
	}

	pages := []Ref{}
	seen := make(map[Ref]bool)
	var walk func(ref Ref) error
	walk = func(ref Ref) error {
		if seen[ref] {
			return fmt.Errorf("%w: page tree loops at %s", ErrMalformed, ref)
		}
		seen[ref] = true
		node, err := d.GetDict(ref)
		if err != nil {
			return fmt.Errorf("page tree node %s: %w", ref, err)
		}
		kids, isTree := node["Kids"]
		if !isTree || node["Type"] == Name("Page") {
			pages = append(pages, ref)
			return nil
		}
		arr, err := d.Resolve(kids)
		if err != nil {
			return err
		}
		list, _ := arr.(Array)
		for _, kid := range list {
			kr, ok := kid.(Ref)
			if !ok {
				return fmt.Errorf("%w: direct page object in /Kids of %s", ErrMalformed, ref)
			}
			if err := walk(kr); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(top); err != nil {
		return nil, err
	}
	d.pages = pages
	return pages, nil
}

// Page returns the reference and dictionary of the i-th page, counting
// from 0.
func (d *Document) Page(i int) (Ref, Dict, error) {
	pages, err := d.Pages()
	if err != nil {
		return Ref{}, nil, err
	}
	if i < 0 || i >= len(pages) {
		return Ref{}, nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(pages))
	}
	dict, err := d.GetDict(pages[i])
	if err != nil {
		return Ref{}, nil, fmt.Errorf("page %d: %w", i, err)
	}
	return pages[i], dict, nil
}
