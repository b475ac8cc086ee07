package objgraph

import (
	"bytes"
	"fmt"
	"strconv"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokKeyword
	tokInteger
	tokReal
	tokName
	tokString
	tokHex
	tokDelim // [ ] << >>
)

type token struct {
	kind tokenKind
	text string
	i    int64
	f    float64
}

// lexer tokenizes PDF file syntax starting at an offset into data.
type lexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{kind: tokEOF}, nil
	}
	start := l.pos
	c := l.data[l.pos]
	switch c {
	case '[', ']':
		l.pos++
		return token{kind: tokDelim, text: string(c)}, nil
	case '<':
		if l.peekAt(1) == '<' {
			l.pos += 2
			return token{kind: tokDelim, text: "<<"}, nil
		}
		return l.hexString()
	case '>':
		if l.peekAt(1) == '>' {
			l.pos += 2
			return token{kind: tokDelim, text: ">>"}, nil
		}
		return token{}, fmt.Errorf("%w: stray '>' at %d", ErrMalformed, start)
	case '(':
		return l.literalString()
	case '/':
		return l.name()
	}

	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return token{}, fmt.Errorf("%w: unexpected %q at %d", ErrMalformed, c, start)
	}
	word := string(l.data[start:l.pos])
	if i, err := strconv.ParseInt(word, 10, 64); err == nil {
		return token{kind: tokInteger, text: word, i: i}, nil
	}
	if looksNumeric(word) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokReal, text: word, f: f}, nil
		}
	}
	return token{kind: tokKeyword, text: word}, nil
}

func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off < len(l.data) {
		return l.data[l.pos+off]
	}
	return 0
}

func (l *lexer) name() (token, error) {
	l.pos++ // '/'
	var b bytes.Buffer
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) || isDelim(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				b.WriteByte(byte(v))
				l.pos += 3
				continue
			}
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{kind: tokName, text: b.String()}, nil
}

func (l *lexer) hexString() (token, error) {
	start := l.pos
	l.pos++ // '<'
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	if l.pos >= len(l.data) {
		return token{}, fmt.Errorf("%w: unterminated hex string at %d", ErrMalformed, start)
	}
	l.pos++ // '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		if err != nil {
			return token{}, fmt.Errorf("%w: bad hex string at %d", ErrMalformed, start)
		}
		out[i] = byte(v)
	}
	return token{kind: tokHex, text: string(out)}, nil
}

func (l *lexer) literalString() (token, error) {
	start := l.pos
	l.pos++ // '('
	var b bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return token{kind: tokString, text: b.String()}, nil
			}
		case '\\':
			if l.pos >= len(l.data) {
				continue
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data); k++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
				}
			}
			continue
		}
		b.WriteByte(c)
	}
	return token{}, fmt.Errorf("%w: unterminated string at %d", ErrMalformed, start)
}

// object parses one object. Integers followed by "gen R" become a Ref.
func (l *lexer) object() (Object, error) {
	tok, err := l.next()
	if err != nil {
		return nil, err
	}
	return l.objectFrom(tok)
}

func (l *lexer) objectFrom(tok token) (Object, error) {
	switch tok.kind {
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of data", ErrMalformed)
	case tokInteger:
		save := l.pos
		if gen, err := l.next(); err == nil && gen.kind == tokInteger {
			if r, err := l.next(); err == nil && r.kind == tokKeyword && r.text == "R" {
				return Ref{Num: int(tok.i), Gen: int(gen.i)}, nil
			}
		}
		l.pos = save
		return Integer(tok.i), nil
	case tokReal:
		return Real(tok.f), nil
	case tokName:
		return Name(tok.text), nil
	case tokString:
		return String(tok.text), nil
	case tokHex:
		return HexString(tok.text), nil
	case tokKeyword:
		switch tok.text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return nil, nil
		}
		return nil, fmt.Errorf("%w: unexpected keyword %q", ErrMalformed, tok.text)
	case tokDelim:
		switch tok.text {
		case "[":
			return l.array()
		case "<<":
			return l.dict()
		}
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, tok.text)
}

func (l *lexer) array() (Array, error) {
	var out Array
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokDelim && tok.text == "]" {
			return out, nil
		}
		obj, err := l.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

func (l *lexer) dict() (Dict, error) {
	out := Dict{}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokDelim && tok.text == ">>" {
			return out, nil
		}
		if tok.kind != tokName {
			return nil, fmt.Errorf("%w: dictionary key %q is not a name", ErrMalformed, tok.text)
		}
		val, err := l.object()
		if err != nil {
			return nil, err
		}
		if val != nil {
			out[Name(tok.text)] = val
		}
	}
}

func (l *lexer) expectKeyword(kw string) error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != tokKeyword || tok.text != kw {
		return fmt.Errorf("%w: expected %q, found %q", ErrMalformed, kw, tok.text)
	}
	return nil
}

func (l *lexer) integer() (int64, error) {
	tok, err := l.next()
	if err != nil {
		return 0, err
	}
	if tok.kind != tokInteger {
		return 0, fmt.Errorf("%w: expected integer, found %q", ErrMalformed, tok.text)
	}
	return tok.i, nil
}
