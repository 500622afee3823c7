package storeop

import "github.com/roach88/crawlplan/internal/ir"

// Predicate is a condition over a decoded record.
//
// This is a sealed interface: only types in this package implement it.
// Paths are dotted and relative to the record, or to the element when the
// predicate is nested in Any. The empty path is the element itself.
type Predicate interface {
	predicate()
	String() string
}

// Eq is field membership: the value at Path is one of Values. An absent
// field reads as Default, and as null when Default is nil. With IgnoreCase
// both sides are case folded.
type Eq struct {
	Path       string
	Values     []ir.IRValue
	Default    ir.IRValue
	IgnoreCase bool
}

func (Eq) predicate() {}

// Interval is range membership: Lower <= value < Upper, with inclusivity
// per endpoint. ir.Min and ir.Max stand for unbounded endpoints. Absent
// fields read as Default or null, so an unbounded lower endpoint admits
// records lacking a field with no default.
type Interval struct {
	Path           string
	Lower          ir.IRValue
	Upper          ir.IRValue
	LowerInclusive bool
	UpperInclusive bool
	Default        ir.IRValue
	IgnoreCase     bool
}

func (Interval) predicate() {}

// Any matches when some element of the repeated field at Path satisfies
// Where. An absent or empty field never matches.
type Any struct {
	Path  string
	Where Predicate
}

func (Any) predicate() {}

// And matches when every predicate matches. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicate() {}

// Conjoin joins predicates, flattening nested And.
func Conjoin(preds ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range preds {
		if and, ok := p.(And); ok {
			flat = append(flat, and.Predicates...)
			continue
		}
		flat = append(flat, p)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return And{Predicates: flat}
}
