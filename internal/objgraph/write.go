package objgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Append appends the PDF syntax for obj to dst. Dictionary keys are written
// in sorted order so that output is deterministic.
func Append(dst []byte, obj Object) []byte {
	switch x := obj.(type) {
	case nil:
		return append(dst, "null"...)
	case Bool:
		if x {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case Integer:
		return strconv.AppendInt(dst, int64(x), 10)
	case Real:
		return AppendReal(dst, float64(x))
	case Name:
		return appendName(dst, x)
	case String:
		return AppendLiteral(dst, []byte(x))
	case HexString:
		dst = append(dst, '<')
		dst = fmt.Appendf(dst, "%X", []byte(x))
		return append(dst, '>')
	case Ref:
		return fmt.Appendf(dst, "%d %d R", x.Num, x.Gen)
	case Array:
		dst = append(dst, '[')
		for i, el := range x {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = Append(dst, el)
		}
		return append(dst, ']')
	case Dict:
		dst = append(dst, "<<"...)
		for _, k := range x.Keys() {
			dst = append(dst, ' ')
			dst = appendName(dst, k)
			dst = append(dst, ' ')
			dst = Append(dst, x[k])
		}
		return append(dst, " >>"...)
	}
	panic(fmt.Sprintf("objgraph: cannot serialize %T", obj))
}

// AppendReal writes x without an exponent and with at most five decimals.
func AppendReal(dst []byte, x float64) []byte {
	s := strconv.FormatFloat(x, 'f', 5, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return append(dst, s...)
}

func appendName(dst []byte, n Name) []byte {
	dst = append(dst, '/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || c == '#' || isDelim(c) {
			dst = fmt.Appendf(dst, "#%02X", c)
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// AppendLiteral writes s as a literal string. Backslashes and parentheses
// without a partner are escaped; balanced pairs are kept as they are.
func AppendLiteral(dst []byte, s []byte) []byte {
	balanced := make([]bool, len(s))
	var open []int
	for i, c := range s {
		switch c {
		case '(':
			open = append(open, i)
		case ')':
			if n := len(open); n > 0 {
				balanced[open[n-1]] = true
				balanced[i] = true
				open = open[:n-1]
			}
		}
	}

	dst = append(dst, '(')
	for i, c := range s {
		switch {
		case c == '\\':
			dst = append(dst, `\\`...)
		case (c == '(' || c == ')') && !balanced[i]:
			dst = append(dst, '\\', c)
		case c == '\r':
			dst = append(dst, `\r`...)
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, ')')
}
