package storeop

import (
	"github.com/roach88/crawlplan/internal/ir"
)

// Evaluate reports whether record satisfies pred.
func Evaluate(pred Predicate, record ir.IRObject) bool {
	return evaluate(pred, record)
}

func evaluate(pred Predicate, root ir.IRValue) bool {
	switch p := pred.(type) {
	case Eq:
		v := Read(root, p.Path, p.Default, p.IgnoreCase)
		for _, want := range p.Values {
			if p.IgnoreCase {
				want = ir.FoldValue(want)
			}
			if ir.Equal(v, want) {
				return true
			}
		}
		return false

	case Interval:
		v := Read(root, p.Path, p.Default, p.IgnoreCase)
		lower, upper := p.Lower, p.Upper
		if p.IgnoreCase {
			lower, upper = ir.FoldValue(lower), ir.FoldValue(upper)
		}
		return InInterval(v, lower, upper, p.LowerInclusive, p.UpperInclusive)

	case Any:
		arr, ok := lookup(root, p.Path).(ir.IRArray)
		if !ok {
			return false
		}
		for _, elem := range arr {
			if evaluate(p.Where, elem) {
				return true
			}
		}
		return false

	case And:
		for _, sub := range p.Predicates {
			if !evaluate(sub, root) {
				return false
			}
		}
		return true
	}
	return false
}

// InInterval reports whether v lies between lower and upper.
func InInterval(v, lower, upper ir.IRValue, lowerInclusive, upperInclusive bool) bool {
	c := ir.Compare(v, lower)
	if c < 0 || (c == 0 && !lowerInclusive) {
		return false
	}
	c = ir.Compare(v, upper)
	return c < 0 || (c == 0 && upperInclusive)
}

// Read returns the value at path with default substitution, folded on
// request. Absent fields without a default read as null. Sorts and filters
// read fields the same way.
func Read(root ir.IRValue, path string, def ir.IRValue, fold bool) ir.IRValue {
	v := lookup(root, path)
	if v == nil {
		v = def
	}
	if v == nil {
		v = ir.IRNull{}
	}
	if fold {
		v = ir.FoldValue(v)
	}
	return v
}

func lookup(root ir.IRValue, path string) ir.IRValue {
	v, ok := ir.LookupValue(root, path)
	if !ok {
		return nil
	}
	return v
}
