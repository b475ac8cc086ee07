package content

// Class tells how an operator takes part in keyword numbering.
type Class uint8

const (
	// Counted operators advance the keyword ordinal once per invocation.
	Counted Class = iota
	// Ignored operators are path construction and leave the ordinal alone.
	Ignored
)

// operators lists the content stream operators in the order of table 50 of
// ISO 32000-2. Anything not listed is counted.
var operators = map[string]Class{
	// general graphics state
	"w": Counted, "J": Counted, "j": Counted, "M": Counted, "d": Counted,
	"ri": Counted, "i": Counted, "gs": Counted,
	// special graphics state
	"q": Counted, "Q": Counted, "cm": Counted,
	// path construction
	"m": Ignored, "l": Ignored, "c": Ignored, "v": Ignored, "y": Ignored,
	"h": Ignored, "re": Ignored,
	// path painting
	"S": Counted, "s": Counted, "f": Counted, "F": Counted, "f*": Counted,
	"B": Counted, "B*": Counted, "b": Counted, "b*": Counted,
	"n": Ignored,
	// clipping paths
	"W": Counted, "W*": Counted,
	// text objects
	"BT": Counted, "ET": Counted,
	// text state
	"Tc": Counted, "Tw": Counted, "Tz": Counted, "TL": Counted, "Tf": Counted,
	"Tr": Counted, "Ts": Counted,
	// text positioning
	"Td": Counted, "TD": Counted, "Tm": Counted, "T*": Counted,
	// text showing
	"Tj": Counted, "TJ": Counted, "'": Counted, "\"": Counted,
	// type 3 fonts
	"d0": Counted, "d1": Counted,
	// colour
	"CS": Counted, "cs": Counted, "SC": Counted, "SCN": Counted,
	"sc": Counted, "scn": Counted, "G": Counted, "g": Counted,
	"RG": Counted, "rg": Counted, "K": Counted, "k": Counted,
	// shading, inline images, XObjects
	"sh": Counted, "BI": Counted, "ID": Counted, "EI": Counted, "Do": Counted,
	// marked content
	"MP": Counted, "DP": Counted, "BMC": Counted, "BDC": Counted, "EMC": Counted,
	// compatibility
	"BX": Counted, "EX": Counted,
}

// Classify returns the numbering class of op.
func Classify(op string) Class {
	if c, ok := operators[op]; ok {
		return c
	}
	return Counted
}

// IsShowText reports whether op paints text.
func IsShowText(op string) bool {
	switch op {
	case "Tj", "TJ", "'", "\"":
		return true
	}
	return false
}
