package ir

import "strings"

// Lookup resolves a dotted path against obj without schema knowledge.
// It returns false when any segment is absent or a non-object is traversed.
// An empty path resolves to obj itself.
func Lookup(obj IRObject, path string) (IRValue, bool) {
	if path == "" {
		return obj, true
	}
	var cur IRValue = obj
	for _, seg := range strings.Split(path, ".") {
		o, ok := cur.(IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = o[seg]
		if !ok {
			return nil, false
		}
	}
	if _, isNull := cur.(IRNull); isNull {
		return nil, false
	}
	return cur, true
}

// LookupValue is Lookup generalized to any IRValue root. Non-object roots
// resolve only the empty path.
func LookupValue(v IRValue, path string) (IRValue, bool) {
	if path == "" {
		if _, isNull := v.(IRNull); isNull || v == nil {
			return nil, false
		}
		return v, true
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, false
	}
	return Lookup(obj, path)
}
