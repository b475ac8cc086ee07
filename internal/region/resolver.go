package region

import (
	"errors"
	"fmt"
	"strings"

	"seehuhn.de/go/geom/rect"

	"github.com/dgallion1/pdfloc/internal/layout"
)

// DefaultMaxSteps bounds the successor walk of Range.
const DefaultMaxSteps = 100000

var (
	ErrOutOfRange       = errors.New("node is not a glyph")
	ErrTraversalOverrun = errors.New("traversal step limit exceeded")
	ErrEndNotFound      = errors.New("end glyph not reached")
)

// Resolver computes regions over a layout tree.
type Resolver struct {
	tree *layout.Tree

	// MaxSteps limits the successor walk; 0 means DefaultMaxSteps.
	MaxSteps int
}

func NewResolver(tree *layout.Tree) *Resolver {
	return &Resolver{tree: tree}
}

// Single returns the region of one glyph.
func (r *Resolver) Single(g layout.NodeID) (Region, error) {
	if err := r.checkGlyph(g); err != nil {
		return Region{}, err
	}
	page, err := r.page(g)
	if err != nil {
		return Region{}, err
	}
	n := r.tree.Node(g)
	return Region{BBox: box(n.BBox), Page: page, Text: n.Text}, nil
}

// Range returns one region per line from the line of start to the line of
// end, both inclusive. The first region begins at start's box and the last
// ends at end's box.
func (r *Resolver) Range(start, end layout.NodeID) ([]Region, error) {
	if err := r.checkGlyph(start); err != nil {
		return nil, err
	}
	if err := r.checkGlyph(end); err != nil {
		return nil, err
	}

	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	first := r.tree.Node(start).Parent
	last := r.tree.Node(end).Parent
	isLine := func(n *layout.Node) bool { return n.Kind == layout.KindLine }

	lines := []layout.NodeID{first}
	for cur, steps := first, 0; cur != last; {
		cur = r.tree.Next(cur, isLine)
		if cur == layout.None {
			return nil, fmt.Errorf("%w: glyph %d after glyph %d", ErrEndNotFound, end, start)
		}
		if steps++; steps > maxSteps {
			return nil, fmt.Errorf("%w: %d steps", ErrTraversalOverrun, maxSteps)
		}
		if r.tree.Node(cur).Kind == layout.KindLine {
			lines = append(lines, cur)
		}
	}

	regions := make([]Region, 0, len(lines))
	for i, id := range lines {
		page, err := r.page(id)
		if err != nil {
			return nil, err
		}
		line := r.tree.Node(id)
		from, to := 0, len(line.Children)-1
		if i == 0 {
			from = r.tree.Node(start).Index
		}
		if i == len(lines)-1 {
			to = r.tree.Node(end).Index
		}
		regions = append(regions, Region{
			BBox: box(line.BBox),
			Page: page,
			Text: r.text(line, from, to),
		})
	}

	s := r.tree.Node(start).BBox
	e := r.tree.Node(end).BBox
	regions[0].BBox.X0, regions[0].BBox.Y0 = s.LLx, s.LLy
	n := len(regions) - 1
	regions[n].BBox.X1, regions[n].BBox.Y1 = e.URx, e.URy
	return regions, nil
}

func (r *Resolver) checkGlyph(id layout.NodeID) error {
	if !r.tree.Valid(id) || r.tree.Node(id).Kind != layout.KindGlyph {
		return fmt.Errorf("%w: node %d", ErrOutOfRange, id)
	}
	return nil
}

func (r *Resolver) page(id layout.NodeID) (int, error) {
	p, err := r.tree.PageOf(id)
	if err != nil {
		return 0, err
	}
	return r.tree.Node(p).PageID, nil
}

func (r *Resolver) text(line *layout.Node, from, to int) string {
	var b strings.Builder
	for i := max(from, 0); i <= to && i < len(line.Children); i++ {
		b.WriteString(r.tree.Node(line.Children[i]).Text)
	}
	return b.String()
}

func box(r rect.Rect) BoundingBox {
	return BoundingBox{X0: r.LLx, Y0: r.LLy, X1: r.URx, Y1: r.URy}
}
