package index

import (
	"github.com/roach88/crawlplan/internal/ir"
)

// Keys returns the index keys a store derives from record, one tuple per
// emitted key. Drivers must honour these rules so that index scans and
// filters agree:
//   - an absent scalar reads as its schema default, or null when it has none
//   - a repeated component emits one key per element; an empty list emits
//     no key at all
//   - message elements contribute their Elem sub-fields (absent reads "")
//   - ignore-case indexes fold every string part
func (r *Registry) Keys(idx *Index, record ir.IRObject) [][]ir.IRValue {
	keys := [][]ir.IRValue{{}}
	for i, path := range idx.Paths {
		node, ok := r.desc.Lookup(path)
		if !ok {
			return nil
		}
		v, _ := r.desc.GetOrDefault(path, record)

		var options [][]ir.IRValue
		switch {
		case node.Repeated:
			arr, _ := v.(ir.IRArray)
			for _, elem := range arr {
				options = append(options, elemParts(idx, i, elem))
			}
		case v == nil:
			options = [][]ir.IRValue{{ir.IRNull{}}}
		default:
			options = [][]ir.IRValue{{v}}
		}
		if len(options) == 0 {
			return nil
		}

		next := make([][]ir.IRValue, 0, len(keys)*len(options))
		for _, prefix := range keys {
			for _, opt := range options {
				key := append(append([]ir.IRValue(nil), prefix...), opt...)
				next = append(next, key)
			}
		}
		keys = next
	}

	if idx.IgnoreCase {
		for _, key := range keys {
			for j := range key {
				key[j] = ir.FoldValue(key[j])
			}
		}
	}
	return dedupe(keys)
}

func elemParts(idx *Index, component int, elem ir.IRValue) []ir.IRValue {
	if idx.Width(component) == 1 && len(idx.Elem) == 0 {
		return []ir.IRValue{elem}
	}
	parts := make([]ir.IRValue, len(idx.Elem))
	for i, field := range idx.Elem {
		v, ok := ir.LookupValue(elem, field)
		if !ok {
			v = ir.IRString("")
		}
		parts[i] = v
	}
	return parts
}

func dedupe(keys [][]ir.IRValue) [][]ir.IRValue {
	out := keys[:0]
	for _, k := range keys {
		dup := false
		for _, seen := range out {
			if ir.Equal(ir.IRArray(k), ir.IRArray(seen)) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}
	return out
}
