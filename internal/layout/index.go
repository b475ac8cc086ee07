package layout

import (
	"errors"
	"fmt"

	"github.com/dgallion1/pdfloc/internal/pdfloc"
)

// ErrKeyLookup is returned when a token's ordinals are not in the index.
var ErrKeyLookup = errors.New("location not found")

// Address is the position of a glyph in the navigation index.
type Address struct {
	Page    int
	Keyword int
	Line    int
	Glyph   int
}

// Index maps page → keyword → string run → glyphs.
type Index struct {
	pages map[int]map[int][][]NodeID
	addrs map[NodeID]Address
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		pages: make(map[int]map[int][][]NodeID),
		addrs: make(map[NodeID]Address),
	}
}

// HasPage reports whether page was indexed.
func (x *Index) HasPage(page int) bool {
	_, ok := x.pages[page]
	return ok
}

func (x *Index) addPage(page int) {
	if _, ok := x.pages[page]; !ok {
		x.pages[page] = make(map[int][][]NodeID)
	}
}

func (x *Index) addRun(page, keyword, strings int) {
	x.addPage(page)
	x.pages[page][keyword] = make([][]NodeID, strings)
}

func (x *Index) addGlyph(page, keyword, run int, id NodeID) {
	runs := x.pages[page][keyword]
	for len(runs) <= run {
		runs = append(runs, nil)
	}
	x.addrs[id] = Address{Page: page, Keyword: keyword, Line: run, Glyph: len(runs[run])}
	runs[run] = append(runs[run], id)
	x.pages[page][keyword] = runs
}

// Lookup returns the glyph addressed by tok. End ordinals select the last
// keyword with text, the last string run and the last glyph.
func (x *Index) Lookup(tok pdfloc.Token) (NodeID, error) {
	keywords, ok := x.pages[tok.Page]
	if !ok {
		return None, fmt.Errorf("%w: page %d", ErrKeyLookup, tok.Page)
	}

	kw := int(tok.Keyword)
	if tok.Keyword == pdfloc.End {
		kw = -1
		for k, runs := range keywords {
			if k > kw && hasGlyphs(runs) {
				kw = k
			}
		}
	}
	runs, ok := keywords[kw]
	if !ok {
		return None, fmt.Errorf("%w: page %d keyword %s", ErrKeyLookup, tok.Page, tok.Keyword)
	}

	line := int(tok.Line)
	if tok.Line == pdfloc.End {
		line = len(runs) - 1
	}
	if line < 0 || line >= len(runs) {
		return None, fmt.Errorf("%w: page %d keyword %d line %s", ErrKeyLookup, tok.Page, kw, tok.Line)
	}

	glyphs := runs[line]
	g := int(tok.Glyph)
	if tok.Glyph == pdfloc.End {
		g = len(glyphs) - 1
	}
	if g < 0 || g >= len(glyphs) {
		return None, fmt.Errorf("%w: page %d keyword %d line %d glyph %s", ErrKeyLookup, tok.Page, kw, line, tok.Glyph)
	}
	return glyphs[g], nil
}

// Address returns the index position of a glyph node.
func (x *Index) Address(id NodeID) (Address, bool) {
	a, ok := x.addrs[id]
	return a, ok
}

func hasGlyphs(runs [][]NodeID) bool {
	for _, r := range runs {
		if len(r) > 0 {
			return true
		}
	}
	return false
}
