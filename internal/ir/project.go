package ir

import (
	"sort"
	"strings"
)

// PathTree selects sub-trees of a record for projection. A node with no
// children selects the whole value under it. Trees are built from
// non-overlapping path sets (see schema.FieldMask).
type PathTree map[string]PathTree

// NewPathTree builds a tree from dotted paths.
func NewPathTree(paths ...string) PathTree {
	t := PathTree{}
	for _, p := range paths {
		t.Add(p)
	}
	return t
}

// Add inserts a dotted path.
func (t PathTree) Add(path string) {
	cur := t
	for _, seg := range strings.Split(path, ".") {
		next, ok := cur[seg]
		if !ok {
			next = PathTree{}
			cur[seg] = next
		}
		cur = next
	}
}

// Paths returns the leaf paths of the tree in sorted order.
func (t PathTree) Paths() []string {
	var out []string
	var walk func(prefix string, n PathTree)
	walk = func(prefix string, n PathTree) {
		for name, child := range n {
			full := name
			if prefix != "" {
				full = prefix + "." + name
			}
			if len(child) == 0 {
				out = append(out, full)
				continue
			}
			walk(full, child)
		}
	}
	walk("", t)
	sort.Strings(out)
	return out
}

// Project copies the selected parts of obj. Absent selections are skipped.
func Project(obj IRObject, tree PathTree) IRObject {
	out := IRObject{}
	for name, child := range tree {
		v, ok := obj[name]
		if !ok {
			continue
		}
		if len(child) == 0 {
			out[name] = CloneValue(v)
			continue
		}
		if sub, ok := v.(IRObject); ok {
			out[name] = Project(sub, child)
		}
	}
	return out
}
