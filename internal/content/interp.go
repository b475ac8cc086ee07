package content

import (
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
)

// Glyph boxes span this band of text space vertically.
const (
	glyphDescent = -0.2
	glyphAscent  = 0.8
)

// DefaultMaxDepth bounds nested form invocations.
const DefaultMaxDepth = 32

// frame is the numbering context of one content stream invocation.
// Nested forms get a fresh frame whose base is the parent's flattened
// ordinal at the invoking operator.
type frame struct {
	base    int
	keyword int
	depth   int
}

func (f frame) ordinal() int {
	return f.base + f.keyword
}

type textState struct {
	ctm  matrix.Matrix
	tm   matrix.Matrix
	tlm  matrix.Matrix
	font Font
	size float64
	tc   float64 // character spacing
	tw   float64 // word spacing
	th   float64 // horizontal scaling
	tl   float64 // leading
	rise float64
}

// Interpreter walks content streams and drives a Device.
// It is not safe for concurrent use.
type Interpreter struct {
	dev Device

	// Strict makes unresolved form XObjects fatal.
	Strict bool
	// MaxDepth limits nested form invocations; 0 means DefaultMaxDepth.
	MaxDepth int

	gs     textState
	stack  []textState
	inText bool
}

// NewInterpreter returns an interpreter reporting to dev.
func NewInterpreter(dev Device) *Interpreter {
	return &Interpreter{dev: dev}
}

// RunPage interprets the content of one page with the given initial
// transformation and returns the page's flattened keyword count.
func (in *Interpreter) RunPage(content Stream, res Resources, ctm matrix.Matrix) (int, error) {
	in.gs = textState{ctm: ctm, tm: matrix.Identity, tlm: matrix.Identity, th: 1}
	in.stack = in.stack[:0]
	in.inText = false

	f, err := in.run(frame{}, content, res)
	if err != nil {
		return f.ordinal(), err
	}
	return f.ordinal(), nil
}

func (in *Interpreter) run(f frame, content Stream, res Resources) (frame, error) {
	outerText := in.inText
	in.inText = false

	err := content.Scan(func(op Op) error {
		if Classify(op.Name) == Counted {
			f.keyword++
		}
		var err error
		f, err = in.do(f, op, res)
		return err
	})

	if in.inText {
		in.dev.EndGroup()
	}
	in.inText = outerText
	return f, err
}

func (in *Interpreter) do(f frame, op Op, res Resources) (frame, error) {
	args := op.Args
	gs := &in.gs

	switch op.Name {
	case "q":
		in.stack = append(in.stack, *gs)

	case "Q":
		if n := len(in.stack); n > 0 {
			*gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}

	case "cm":
		if m, ok := getMatrix(args); ok {
			gs.ctm = m.Mul(gs.ctm)
		}

	case "BT":
		if in.inText {
			in.dev.EndGroup()
		}
		gs.tm = matrix.Identity
		gs.tlm = matrix.Identity
		in.inText = true
		in.dev.BeginGroup(rect.Rect{}, gs.ctm)

	case "ET":
		if in.inText {
			in.dev.EndGroup()
			in.inText = false
		}

	case "Tc":
		if x, ok := getNum(args, 0); ok {
			gs.tc = x
		}
	case "Tw":
		if x, ok := getNum(args, 0); ok {
			gs.tw = x
		}
	case "Tz":
		if x, ok := getNum(args, 0); ok {
			gs.th = x / 100
		}
	case "TL":
		if x, ok := getNum(args, 0); ok {
			gs.tl = x
		}
	case "Ts":
		if x, ok := getNum(args, 0); ok {
			gs.rise = x
		}

	case "Tf":
		name, ok1 := getName(args, 0)
		size, ok2 := getNum(args, 1)
		if !ok1 || !ok2 || res == nil {
			break
		}
		font, err := res.Font(name)
		if err != nil {
			if errors.Is(err, ErrUnresolvedReference) && !in.Strict {
				gs.font = nil
				gs.size = size
				break
			}
			return f, fmt.Errorf("font %s: %w", name, err)
		}
		gs.font = font
		gs.size = size

	case "Td":
		dx, ok1 := getNum(args, 0)
		dy, ok2 := getNum(args, 1)
		if ok1 && ok2 {
			gs.tlm = matrix.Translate(dx, dy).Mul(gs.tlm)
			gs.tm = gs.tlm
		}

	case "TD":
		dx, ok1 := getNum(args, 0)
		dy, ok2 := getNum(args, 1)
		if ok1 && ok2 {
			gs.tl = -dy
			gs.tlm = matrix.Translate(dx, dy).Mul(gs.tlm)
			gs.tm = gs.tlm
		}

	case "Tm":
		if m, ok := getMatrix(args); ok {
			gs.tm = m
			gs.tlm = m
		}

	case "T*":
		in.nextLine()

	case "Tj":
		if s, ok := getString(args, 0); ok {
			in.showText(f, op.Name, Array{s})
		}

	case "TJ":
		if len(args) > 0 {
			if a, ok := args[0].(Array); ok {
				in.showText(f, op.Name, a)
			}
		}

	case "'":
		if s, ok := getString(args, 0); ok {
			in.nextLine()
			in.showText(f, op.Name, Array{s})
		}

	case "\"":
		aw, ok1 := getNum(args, 0)
		ac, ok2 := getNum(args, 1)
		s, ok3 := getString(args, 2)
		if ok1 && ok2 && ok3 {
			gs.tw = aw
			gs.tc = ac
			in.nextLine()
			in.showText(f, op.Name, Array{s})
		}

	case "Do":
		name, ok := getName(args, 0)
		if !ok || res == nil {
			break
		}
		return in.invokeForm(f, name, res)
	}

	return f, nil
}

// invokeForm runs a form XObject in a fresh frame and advances f by the
// number of keywords the form contained.
func (in *Interpreter) invokeForm(f frame, name Name, res Resources) (frame, error) {
	form, err := res.Form(name)
	if err != nil {
		if errors.Is(err, ErrUnresolvedReference) && !in.Strict {
			return f, nil
		}
		return f, fmt.Errorf("xobject %s: %w", name, err)
	}
	if form == nil {
		return f, nil
	}

	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if f.depth >= maxDepth {
		return f, nil
	}

	saved := in.gs
	savedStack := len(in.stack)

	m := form.Matrix
	if m == (matrix.Matrix{}) {
		m = matrix.Identity
	}
	in.gs.ctm = m.Mul(in.gs.ctm)
	formRes := form.Resources
	if formRes == nil {
		formRes = res
	}

	in.dev.BeginGroup(transformRect(in.gs.ctm, form.BBox), m)
	child, err := in.run(frame{base: f.ordinal(), depth: f.depth + 1}, form.Content, formRes)
	in.dev.EndGroup()

	in.gs = saved
	in.stack = in.stack[:savedStack]
	f.keyword += child.keyword
	if err != nil {
		return f, fmt.Errorf("form %s: %w", form.ID, err)
	}
	return f, nil
}

func (in *Interpreter) nextLine() {
	in.gs.tlm = matrix.Translate(0, -in.gs.tl).Mul(in.gs.tlm)
	in.gs.tm = in.gs.tlm
}

func (in *Interpreter) showText(f frame, opName string, seq Array) {
	strs := 0
	for _, x := range seq {
		if _, ok := x.(String); ok {
			strs++
		}
	}
	in.dev.RenderTextRun(TextRun{Keyword: f.ordinal(), Operator: opName, Strings: strs}, seq)

	gs := &in.gs
	run := 0
	for _, x := range seq {
		switch x := x.(type) {
		case String:
			in.showString(run, x)
			run++
		case float64:
			tx := -x / 1000 * gs.size * gs.th
			gs.tm = matrix.Translate(tx, 0).Mul(gs.tm)
		}
	}
}

func (in *Interpreter) showString(run int, s String) {
	gs := &in.gs
	font := gs.font
	if font == nil {
		font = byteFont{}
	}

	for i, c := range font.Decode(s) {
		trm := matrix.Matrix{gs.size * gs.th, 0, 0, gs.size, 0, gs.rise}.Mul(gs.tm).Mul(gs.ctm)
		w := c.Width / 1000
		box := transformRect(trm, rect.Rect{LLx: 0, LLy: glyphDescent, URx: w, URy: glyphAscent})
		in.dev.RenderGlyph(Glyph{Run: run, Index: i, BBox: box, Text: c.Text})

		adv := w*gs.size + gs.tc
		if c.Space {
			adv += gs.tw
		}
		gs.tm = matrix.Translate(adv*gs.th, 0).Mul(gs.tm)
	}
}

// byteFont is used when no font has been selected.
type byteFont struct{}

func (byteFont) Decode(s String) []Code {
	codes := make([]Code, len(s))
	for i := 0; i < len(s); i++ {
		codes[i] = Code{Text: string(rune(s[i])), Width: 500, Space: s[i] == ' '}
	}
	return codes
}

func apply(m matrix.Matrix, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// transformRect returns the axis-aligned bounds of r mapped through m.
func transformRect(m matrix.Matrix, r rect.Rect) rect.Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = apply(m, r.LLx, r.LLy)
	xs[1], ys[1] = apply(m, r.URx, r.LLy)
	xs[2], ys[2] = apply(m, r.LLx, r.URy)
	xs[3], ys[3] = apply(m, r.URx, r.URy)
	out := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for i := range 4 {
		out.LLx = min(out.LLx, xs[i])
		out.LLy = min(out.LLy, ys[i])
		out.URx = max(out.URx, xs[i])
		out.URy = max(out.URy, ys[i])
	}
	return out
}

func getNum(args []Operand, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	x, ok := args[i].(float64)
	return x, ok
}

func getName(args []Operand, i int) (Name, bool) {
	if i >= len(args) {
		return "", false
	}
	x, ok := args[i].(Name)
	return x, ok
}

func getString(args []Operand, i int) (String, bool) {
	if i >= len(args) {
		return "", false
	}
	x, ok := args[i].(String)
	return x, ok
}

func getMatrix(args []Operand) (matrix.Matrix, bool) {
	var m matrix.Matrix
	if len(args) < 6 {
		return m, false
	}
	for i := range 6 {
		x, ok := getNum(args, i)
		if !ok {
			return m, false
		}
		m[i] = x
	}
	return m, true
}
