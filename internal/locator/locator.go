// Package locator converts between location tokens and page regions for one
// document. A Converter interprets the pages it needs once, then answers any
// number of conversions against the resulting layout.
package locator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/content"
	"github.com/dgallion1/pdfloc/internal/engine"
	"github.com/dgallion1/pdfloc/internal/layout"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/region"
)

var (
	ErrAlreadyBuilt = errors.New("layout already built")
	ErrNotBuilt     = errors.New("layout not built")
	ErrNoText       = errors.New("no text on page")
)

// Options tune the build pass and the resolver.
type Options struct {
	// Strict makes unresolved fonts and form XObjects fatal.
	Strict bool
	// MaxSteps bounds range traversal; 0 means region.DefaultMaxSteps.
	MaxSteps int
}

// Converter answers conversions for one document.
type Converter struct {
	doc      *engine.Document
	checksum string
	opts     Options
	log      *slog.Logger

	pages    map[int]bool // nil means every page
	built    bool
	builder  *layout.Builder
	resolver *region.Resolver
}

// New opens the document held in data.
func New(data []byte, opts Options, log *slog.Logger) (*Converter, error) {
	doc, err := engine.OpenBytes(data)
	if err != nil {
		return nil, err
	}
	return &Converter{
		doc:      doc,
		checksum: Checksum(data),
		opts:     opts,
		log:      log,
	}, nil
}

// Checksum returns the document checksum written into generated tokens: the
// first 8 hex digits of the BLAKE3 digest of the file.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:4])
}

// NumPage returns the page count of the document.
func (c *Converter) NumPage() int {
	return c.doc.NumPage()
}

// Restrict limits the build pass to pages. An empty list keeps every page.
func (c *Converter) Restrict(pages []int) error {
	if c.built {
		return ErrAlreadyBuilt
	}
	if len(pages) == 0 {
		c.pages = nil
		return nil
	}
	c.pages = make(map[int]bool, len(pages))
	for _, p := range pages {
		c.pages[p] = true
	}
	return nil
}

// Build interprets the selected pages and indexes their text. Pages outside
// the document are ignored. A page whose content cannot be read is logged
// and skipped unless the converter is strict.
func (c *Converter) Build(ctx context.Context) error {
	if c.built {
		return ErrAlreadyBuilt
	}

	b := layout.NewBuilder()
	in := content.NewInterpreter(b)
	in.Strict = c.opts.Strict

	n := c.doc.NumPage()
	for i := range n {
		if c.pages != nil && !c.pages[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := c.doc.Page(i)
		if err != nil {
			if c.opts.Strict {
				return err
			}
			c.log.Warn("skipping page", "page", i, "error", err)
			continue
		}
		b.BeginPage(i, p.MediaBox)
		kw, err := in.RunPage(p.Content, p.Resources, matrix.Identity)
		b.EndPage()
		if err != nil {
			if c.opts.Strict {
				return fmt.Errorf("page %d: %w", i, err)
			}
			c.log.Warn("page content incomplete", "page", i, "keywords", kw, "error", err)
		}
	}

	c.builder = b
	c.resolver = region.NewResolver(b.Tree())
	c.resolver.MaxSteps = c.opts.MaxSteps
	c.built = true
	c.log.Debug("layout built", "pages", len(b.Tree().Pages()), "nodes", b.Tree().Len())
	return nil
}

// Tree returns the layout tree, or nil before Build.
func (c *Converter) Tree() *layout.Tree {
	if !c.built {
		return nil
	}
	return c.builder.Tree()
}

// TokenToRegion returns the region of the glyph tok addresses.
func (c *Converter) TokenToRegion(tok pdfloc.Token) (region.Region, error) {
	if !c.built {
		return region.Region{}, ErrNotBuilt
	}
	g, err := c.builder.Index().Lookup(tok)
	if err != nil {
		return region.Region{}, err
	}
	return c.resolver.Single(g)
}

// RangeToRegions returns one region per line between the range's start and
// end glyphs. The set's note is the range comment.
func (c *Converter) RangeToRegions(r pdfloc.Range) (region.Set, error) {
	if !c.built {
		return region.Set{}, ErrNotBuilt
	}
	idx := c.builder.Index()
	start, err := idx.Lookup(r.Start)
	if err != nil {
		return region.Set{}, fmt.Errorf("start: %w", err)
	}
	end, err := idx.Lookup(r.End)
	if err != nil {
		return region.Set{}, fmt.Errorf("end: %w", err)
	}
	regions, err := c.resolver.Range(start, end)
	if err != nil {
		return region.Set{}, err
	}
	return region.Set{Regions: regions, Note: r.Comment}, nil
}

// BoxesToRange returns the range from the glyph nearest the upper-left
// corner of the first box to the glyph nearest the lower-right corner of the
// last box.
func (c *Converter) BoxesToRange(boxes []region.Region, comment string) (pdfloc.Range, error) {
	if !c.built {
		return pdfloc.Range{}, ErrNotBuilt
	}
	if len(boxes) == 0 {
		return pdfloc.Range{}, fmt.Errorf("%w: no boxes", ErrNoText)
	}
	first, last := boxes[0], boxes[len(boxes)-1]

	start, err := c.nearest(first.Page, min(first.BBox.X0, first.BBox.X1), first.BBox.Top())
	if err != nil {
		return pdfloc.Range{}, err
	}
	end, err := c.nearest(last.Page, max(last.BBox.X0, last.BBox.X1), last.BBox.Bottom())
	if err != nil {
		return pdfloc.Range{}, err
	}
	return pdfloc.Range{Start: start, End: end, Comment: comment}, nil
}

// nearest returns the token of the glyph on page closest to (x, y).
func (c *Converter) nearest(page int, x, y float64) (pdfloc.Token, error) {
	tree := c.builder.Tree()
	var pageNode layout.NodeID = layout.None
	for _, p := range tree.Pages() {
		if tree.Node(p).PageID == page {
			pageNode = p
			break
		}
	}
	if pageNode == layout.None {
		return pdfloc.Token{}, fmt.Errorf("%w: page %d not built", layout.ErrKeyLookup, page)
	}

	best, bestDist := layout.None, math.Inf(1)
	tree.Walk(pageNode, func(id layout.NodeID, n *layout.Node) bool {
		if n.Kind == layout.KindGlyph {
			if d := distance(n.BBox, x, y); d < bestDist {
				best, bestDist = id, d
			}
		}
		return true
	})
	if best == layout.None {
		return pdfloc.Token{}, fmt.Errorf("%w: page %d", ErrNoText, page)
	}

	a, ok := c.builder.Index().Address(best)
	if !ok {
		return pdfloc.Token{}, fmt.Errorf("%w: glyph %d not indexed", layout.ErrKeyLookup, best)
	}
	return pdfloc.Token{
		Checksum: c.checksum,
		Page:     a.Page,
		Keyword:  pdfloc.Ordinal(a.Keyword),
		Line:     pdfloc.Ordinal(a.Line),
		Glyph:    pdfloc.Ordinal(a.Glyph),
	}, nil
}

// distance is zero inside r and the Euclidean distance to its edge outside.
func distance(r rect.Rect, x, y float64) float64 {
	dx := max(r.LLx-x, 0, x-r.URx)
	dy := max(r.LLy-y, 0, y-r.URy)
	return math.Hypot(dx, dy)
}

// PagesOf returns the sorted, distinct pages below numPages that the ranges
// and boxes touch.
func PagesOf(ranges []pdfloc.Range, boxes [][]region.Region, numPages int) []int {
	var pages []int
	for _, r := range ranges {
		pages = append(pages, r.Pages(numPages)...)
	}
	for _, set := range boxes {
		for _, b := range set {
			if b.Page < numPages {
				pages = append(pages, b.Page)
			}
		}
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// Text returns the text of page, one line per show-text operator.
func (c *Converter) Text(page int) (string, error) {
	if !c.built {
		return "", ErrNotBuilt
	}
	tree := c.builder.Tree()
	var b strings.Builder
	for _, p := range tree.Pages() {
		if tree.Node(p).PageID != page {
			continue
		}
		tree.Walk(p, func(id layout.NodeID, n *layout.Node) bool {
			if n.Kind != layout.KindLine {
				return true
			}
			b.WriteString(tree.Text(id))
			b.WriteByte('\n')
			return false
		})
		return b.String(), nil
	}
	return "", fmt.Errorf("%w: page %d not built", layout.ErrKeyLookup, page)
}
