// Package objgraph reads the object graph of a PDF file with a classic
// cross-reference table: object offsets, trailer, page tree. It also
// serializes objects for incremental updates.
package objgraph

import (
	"fmt"
	"sort"
)

// Object is one of Bool, Integer, Real, String, HexString, Name, Array,
// Dict, Ref, *Stream or nil.
type Object any

type (
	Bool      bool
	Integer   int64
	Real      float64
	String    string
	HexString string
	Name      string
	Array     []Object
	Dict      map[Name]Object
)

// Ref is an indirect reference.
type Ref struct {
	Num int
	Gen int
}

func (r Ref) String() string {
	return fmt.Sprintf("%d %d R", r.Num, r.Gen)
}

// Stream is a stream object. Only the dictionary and the data offset are
// kept; the data is never decoded.
type Stream struct {
	Dict   Dict
	Offset int64
}

// Keys returns the dictionary keys in sorted order.
func (d Dict) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns a shallow copy of d.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Number returns the value of an Integer or Real.
func Number(obj Object) (float64, bool) {
	switch x := obj.(type) {
	case Integer:
		return float64(x), true
	case Real:
		return float64(x), true
	}
	return 0, false
}
