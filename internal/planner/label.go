package planner

import (
	"strings"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/storeop"
)

// LabelMatch is the sub-kind of a label selector.
type LabelMatch int

const (
	// LabelExact matches key and value: "key:value".
	LabelExact LabelMatch = iota
	// LabelKeyValuePrefix matches key and a value prefix: "key:value*".
	LabelKeyValuePrefix
	// LabelAnyValue matches key only: "key:".
	LabelAnyValue
	// LabelAnyKey matches value under any key: ":value".
	LabelAnyKey
	// LabelAnyKeyValuePrefix matches a value prefix under any key: ":value*".
	LabelAnyKeyValuePrefix
)

var labelMatchNames = [...]string{"EXACT", "KEY_VALUE_PREFIX", "ANY_VALUE", "ANY_KEY", "ANY_KEY_VALUE_PREFIX"}

func (m LabelMatch) String() string {
	if int(m) < len(labelMatchNames) {
		return labelMatchNames[m]
	}
	return "UNKNOWN"
}

// HasKey reports whether the selector constrains the label key.
func (m LabelMatch) HasKey() bool {
	return m == LabelExact || m == LabelKeyValuePrefix || m == LabelAnyValue
}

// LabelSelector is a parsed label selector. Value holds the prefix for the
// prefix kinds.
type LabelSelector struct {
	Match LabelMatch
	Key   string
	Value string
}

// ParseLabelSelector parses the textual selector grammar:
//
//	key:value    exact
//	key:value*   key with value prefix
//	key:         key with any value
//	:value       value under any key
//	:value*      value prefix under any key
func ParseLabelSelector(s string) (LabelSelector, error) {
	raw := strings.TrimSpace(s)
	key, value, ok := strings.Cut(raw, ":")
	if !ok {
		return LabelSelector{}, &LabelSelectorError{Selector: s, Reason: "missing ':'"}
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	prefix, isPrefix := strings.CutSuffix(value, "*")

	switch {
	case key == "" && value == "":
		return LabelSelector{}, &LabelSelectorError{Selector: s, Reason: "key or value is required"}
	case key == "" && isPrefix && prefix == "":
		return LabelSelector{}, &LabelSelectorError{Selector: s, Reason: "empty value prefix matches every label"}
	case key == "" && isPrefix:
		return LabelSelector{Match: LabelAnyKeyValuePrefix, Value: prefix}, nil
	case key == "":
		return LabelSelector{Match: LabelAnyKey, Value: value}, nil
	case value == "" || (isPrefix && prefix == ""):
		return LabelSelector{Match: LabelAnyValue, Key: key}, nil
	case isPrefix:
		return LabelSelector{Match: LabelKeyValuePrefix, Key: key, Value: prefix}, nil
	}
	return LabelSelector{Match: LabelExact, Key: key, Value: value}, nil
}

func (s LabelSelector) String() string {
	switch s.Match {
	case LabelKeyValuePrefix:
		return s.Key + ":" + s.Value + "*"
	case LabelAnyValue:
		return s.Key + ":"
	case LabelAnyKey:
		return ":" + s.Value
	case LabelAnyKeyValuePrefix:
		return ":" + s.Value + "*"
	}
	return s.Key + ":" + s.Value
}

// usable reports whether idx alone answers the selector. Key-constrained
// selectors need a (key, value) or key-only index; key-less selectors need
// the value-only index.
func (s LabelSelector) usable(idx *index.Index) bool {
	switch s.Match {
	case LabelExact, LabelKeyValuePrefix:
		return idx.ElemIs("key", "value")
	case LabelAnyValue:
		return idx.ElemIs("key", "value") || idx.ElemIs("key")
	case LabelAnyKey, LabelAnyKeyValuePrefix:
		return idx.ElemIs("value")
	}
	return false
}

// predicate is the element condition over one label.
func (s LabelSelector) predicate(ignoreCase bool) storeop.Predicate {
	eq := func(field, v string) storeop.Predicate {
		return storeop.Eq{Path: field, Values: []ir.IRValue{ir.IRString(v)}, Default: ir.IRString(""), IgnoreCase: ignoreCase}
	}
	prefix := func(field, p string) storeop.Predicate {
		return storeop.Interval{
			Path:           field,
			Lower:          ir.IRString(p),
			Upper:          ir.IRString(p + ir.MaxCodePoint),
			LowerInclusive: true,
			UpperInclusive: true,
			Default:        ir.IRString(""),
			IgnoreCase:     ignoreCase,
		}
	}

	switch s.Match {
	case LabelKeyValuePrefix:
		return storeop.And{Predicates: []storeop.Predicate{eq("key", s.Key), prefix("value", s.Value)}}
	case LabelAnyValue:
		return eq("key", s.Key)
	case LabelAnyKey:
		return eq("value", s.Value)
	case LabelAnyKeyValuePrefix:
		return prefix("value", s.Value)
	}
	return storeop.And{Predicates: []storeop.Predicate{eq("key", s.Key), eq("value", s.Value)}}
}

// bounds is the key range over a label index. The registry guarantees the
// index Elem layout matches usable.
func (s LabelSelector) bounds(idx *index.Index) keyBound {
	str := func(v string) ir.IRValue { return ir.IRString(v) }
	switch s.Match {
	case LabelExact:
		return point(str(s.Key), str(s.Value))
	case LabelKeyValuePrefix:
		return keyBound{
			lower:    ir.IRArray{str(s.Key), str(s.Value)},
			upper:    ir.IRArray{str(s.Key), str(s.Value + ir.MaxCodePoint)},
			lowerInc: true,
			upperInc: true,
		}
	case LabelAnyValue:
		return point(str(s.Key))
	case LabelAnyKey:
		return point(str(s.Value))
	}
	return keyBound{
		lower:    ir.IRArray{str(s.Value)},
		upper:    ir.IRArray{str(s.Value + ir.MaxCodePoint)},
		lowerInc: true,
		upperInc: true,
	}
}
