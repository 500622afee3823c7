package ir

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// MaxCodePoint is appended to a prefix to form the inclusive upper bound of a
// prefix range: every string starting with p sorts within [p, p+MaxCodePoint].
const MaxCodePoint = "\U0010FFFF"

type minValue struct{}

func (minValue) irValue() {}

type maxValue struct{}

func (maxValue) irValue() {}

// Min sorts below every other value. Used for open lower bounds.
var Min IRValue = minValue{}

// Max sorts above every other value. Used for open upper bounds.
var Max IRValue = maxValue{}

// IsSentinel reports whether v is Min or Max.
func IsSentinel(v IRValue) bool {
	switch v.(type) {
	case minValue, maxValue:
		return true
	}
	return false
}

// rank orders value types: Min < Null < Bool < Int < String < Array < Object < Max.
func rank(v IRValue) int {
	switch v.(type) {
	case minValue:
		return 0
	case nil, IRNull:
		return 1
	case IRBool:
		return 2
	case IRInt:
		return 3
	case IRString:
		return 4
	case IRArray:
		return 5
	case IRObject:
		return 6
	case maxValue:
		return 7
	}
	return 8
}

// Compare returns -1, 0 or +1. It is a total order over all IRValues.
// Strings compare by code point, arrays element-wise like tuples, objects by
// sorted key/value pairs.
func Compare(a, b IRValue) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case IRBool:
		bv := b.(IRBool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case IRInt:
		bv := b.(IRInt)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case IRString:
		return strings.Compare(string(av), string(b.(IRString)))
	case IRArray:
		bv := b.(IRArray)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(av), len(bv))
	case IRObject:
		bv := b.(IRObject)
		ak, bk := av.SortedKeys(), bv.SortedKeys()
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(av[ak[i]], bv[bk[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ak), len(bk))
	}
	return 0
}

// Equal reports whether a and b compare equal.
func Equal(a, b IRValue) bool {
	return Compare(a, b) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Fold returns the Unicode case fold of s. Case-insensitive indexes and
// filters compare folded strings.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// FoldValue folds string values and recurses into arrays. Other values are
// returned unchanged.
func FoldValue(v IRValue) IRValue {
	switch val := v.(type) {
	case IRString:
		return IRString(Fold(string(val)))
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = FoldValue(elem)
		}
		return out
	}
	return v
}

// Format renders a value for diagnostics: strings quoted, sentinels as
// MIN/MAX, the rest as canonical JSON.
func Format(v IRValue) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case minValue:
		return "MIN"
	case maxValue:
		return "MAX"
	case IRString:
		return strconv.Quote(string(val))
	case IRArray:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	data, err := MarshalCanonical(v)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}
