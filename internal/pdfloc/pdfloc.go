// Package pdfloc parses and formats #pdfloc(...) location tokens.
package pdfloc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedToken is returned when text does not match the token grammar.
var ErrMalformedToken = errors.New("malformed pdfloc")

// Ordinal is a non-negative position or End.
type Ordinal int

// End marks the end of a stream in place of a concrete ordinal.
const End Ordinal = -1

func (o Ordinal) String() string {
	if o == End {
		return "E"
	}
	return strconv.Itoa(int(o))
}

// Token addresses a single glyph: the page, the flattened keyword ordinal of
// the show-text operator, the string operand within it and the glyph within
// that string.
type Token struct {
	Checksum string
	Page     int
	Keyword  Ordinal
	Line     Ordinal
	Glyph    Ordinal

	// Carried through unchanged; they have no effect on lookups.
	Flag       bool
	UpToEnd    bool
	NotUpToEnd bool
}

var tokenRE = regexp.MustCompile(`(?i)^#pdfloc\(` +
	`([0-9a-f]+),` +
	`([0-9]+),` +
	`([0-9]+|E),` +
	`([0-9]+|E),` +
	`([0-9]+|E),` +
	`([01]),` +
	`([01]),` +
	`([01])` +
	`\)`)

// ParseToken parses a token at the start of s. Trailing text after the
// closing parenthesis is ignored.
func ParseToken(s string) (Token, error) {
	m := tokenRE.FindStringSubmatch(s)
	if m == nil {
		return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, s)
	}

	page, err := strconv.Atoi(m[2])
	if err != nil {
		return Token{}, fmt.Errorf("%w: page %q: %v", ErrMalformedToken, m[2], err)
	}
	var ords [3]Ordinal
	for i, field := range m[3:6] {
		ords[i], err = parseOrdinal(field)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	return Token{
		Checksum:   m[1],
		Page:       page,
		Keyword:    ords[0],
		Line:       ords[1],
		Glyph:      ords[2],
		Flag:       m[6] == "1",
		UpToEnd:    m[7] == "1",
		NotUpToEnd: m[8] == "1",
	}, nil
}

func parseOrdinal(s string) (Ordinal, error) {
	if strings.EqualFold(s, "E") {
		return End, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("ordinal %q: %w", s, err)
	}
	return Ordinal(n), nil
}

// String formats the token in its canonical form.
func (t Token) String() string {
	return fmt.Sprintf("#pdfloc(%s,%d,%s,%s,%s,%s,%s,%s)",
		t.Checksum, t.Page, t.Keyword, t.Line, t.Glyph,
		bit(t.Flag), bit(t.UpToEnd), bit(t.NotUpToEnd))
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Range is a start/end token pair with an optional comment.
type Range struct {
	Start   Token
	End     Token
	Comment string
}

// ParseRange parses "start;end[ comment]".
func ParseRange(s string) (Range, error) {
	start, rest, ok := strings.Cut(strings.TrimSpace(s), ";")
	if !ok {
		return Range{}, fmt.Errorf("%w: missing ';' in %q", ErrMalformedToken, s)
	}

	rest = strings.TrimSpace(rest)
	end, comment := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		end, comment = rest[:i], rest[i:]
	}

	st, err := ParseToken(strings.TrimSpace(start))
	if err != nil {
		return Range{}, err
	}
	et, err := ParseToken(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: st, End: et, Comment: strings.TrimSpace(comment)}, nil
}

// Pages returns the pages from Start.Page to End.Page inclusive, limited to
// the first n pages of the document.
func (r Range) Pages(n int) []int {
	last := min(r.End.Page, n-1)
	if last < r.Start.Page {
		return nil
	}
	pages := make([]int, 0, last-r.Start.Page+1)
	for p := r.Start.Page; p <= last; p++ {
		pages = append(pages, p)
	}
	return pages
}

func (r Range) String() string {
	s := r.Start.String() + ";" + r.End.String()
	if r.Comment != "" {
		s += " " + r.Comment
	}
	return s
}
