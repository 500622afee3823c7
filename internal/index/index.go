// Package index holds the static secondary-index table of each record type.
//
// A Registry maps field paths to the indexes usable for them. Compound
// indexes are registered under every path they cover. Registries are built
// once at startup and are read-only afterwards.
package index

import (
	"fmt"
	"strings"
)

// Index describes one store-maintained index.
type Index struct {
	Name string

	// Paths are the indexed field paths. One path is a single-field index,
	// two or more a compound index.
	Paths []string

	// Multi marks an index that emits one key per element of a repeated
	// component.
	Multi bool

	// IgnoreCase marks an index over case-folded string keys.
	IgnoreCase bool

	// Primary marks the primary key index.
	Primary bool

	// Elem lists the sub-fields of a repeated message component that form
	// that component's key, e.g. ["key", "value"] for a label index.
	Elem []string
}

// IsCompound reports whether the index covers more than one path.
func (idx *Index) IsCompound() bool { return len(idx.Paths) > 1 }

// First returns the leading indexed path.
func (idx *Index) First() string { return idx.Paths[0] }

// Position returns the component position of path, or -1.
func (idx *Index) Position(path string) int {
	for i, p := range idx.Paths {
		if p == path {
			return i
		}
	}
	return -1
}

// Width returns the number of key parts a component contributes: the Elem
// count for the repeated message component, otherwise 1.
func (idx *Index) Width(component int) int {
	if idx.Multi && len(idx.Elem) > 0 && component == idx.multiComponent() {
		return len(idx.Elem)
	}
	return 1
}

// KeyWidth returns the total number of key parts.
func (idx *Index) KeyWidth() int {
	n := 0
	for i := range idx.Paths {
		n += idx.Width(i)
	}
	return n
}

// multiComponent is the component holding the repeated message. The
// registry rejects indexes with more than one repeated component.
func (idx *Index) multiComponent() int {
	if len(idx.Elem) == 0 {
		return -1
	}
	return len(idx.Paths) - 1
}

// ElemIs reports whether the index Elem list equals fields.
func (idx *Index) ElemIs(fields ...string) bool {
	if len(idx.Elem) != len(fields) {
		return false
	}
	for i := range fields {
		if idx.Elem[i] != fields[i] {
			return false
		}
	}
	return true
}

func (idx *Index) String() string {
	var b strings.Builder
	b.WriteString(idx.Name)
	b.WriteString("(")
	b.WriteString(strings.Join(idx.Paths, ","))
	if len(idx.Elem) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(idx.Elem, ","))
	}
	b.WriteString(")")
	var flags []string
	if idx.Primary {
		flags = append(flags, "primary")
	}
	if idx.Multi {
		flags = append(flags, "multi")
	}
	if idx.IgnoreCase {
		flags = append(flags, "ignorecase")
	}
	if len(flags) > 0 {
		b.WriteString(" " + strings.Join(flags, ","))
	}
	return b.String()
}

// Intersect returns the indexes present in both lists, in the order of a.
func Intersect(a, b []*Index) []*Index {
	var out []*Index
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// Contains reports whether list holds idx.
func Contains(list []*Index, idx *Index) bool {
	for _, x := range list {
		if x == idx {
			return true
		}
	}
	return false
}
