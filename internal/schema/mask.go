package schema

import (
	"strings"

	"github.com/roach88/crawlplan/internal/ir"
)

// UpdateType selects how a masked repeated field is merged into a target.
type UpdateType int

const (
	// UpdateReplace overwrites the target value.
	UpdateReplace UpdateType = iota
	// UpdateAppend appends source elements (path suffix "+").
	UpdateAppend
	// UpdateDelete removes source elements from the target (path suffix "-").
	UpdateDelete
)

func (u UpdateType) String() string {
	switch u {
	case UpdateAppend:
		return "APPEND"
	case UpdateDelete:
		return "DELETE"
	default:
		return "REPLACE"
	}
}

func (u UpdateType) suffix() string {
	switch u {
	case UpdateAppend:
		return "+"
	case UpdateDelete:
		return "-"
	default:
		return ""
	}
}

// MaskEntry is one selected path of a FieldMask.
type MaskEntry struct {
	Node   *PathNode
	Update UpdateType
}

// FieldMask is a reduced, non-overlapping set of selected paths.
// Entries keep the order in which they were first requested.
type FieldMask struct {
	desc    *Descriptor
	entries []MaskEntry
}

// ReduceMask validates paths against the descriptor and drops every path
// that has a selected ancestor. An ancestor requested after its descendants
// replaces them. Empty strings are ignored.
func (d *Descriptor) ReduceMask(paths []string) (*FieldMask, error) {
	m := &FieldMask{desc: d}
	for _, raw := range paths {
		path, update := parseMaskPath(raw)
		if path == "" {
			continue
		}
		node, err := d.Node(path)
		if err != nil {
			return nil, err
		}
		m.add(node, update)
	}
	return m, nil
}

func parseMaskPath(raw string) (string, UpdateType) {
	path := strings.TrimSpace(raw)
	switch {
	case strings.HasSuffix(path, "+"):
		return strings.TrimSuffix(path, "+"), UpdateAppend
	case strings.HasSuffix(path, "-"):
		return strings.TrimSuffix(path, "-"), UpdateDelete
	}
	return path, UpdateReplace
}

func (m *FieldMask) add(node *PathNode, update UpdateType) {
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if e.Node == node || e.Node.IsAncestorOf(node) {
			return
		}
		if node.IsAncestorOf(e.Node) {
			continue
		}
		kept = append(kept, e)
	}
	m.entries = append(kept, MaskEntry{Node: node, Update: update})
}

// Descriptor returns the descriptor the mask was reduced against.
func (m *FieldMask) Descriptor() *Descriptor { return m.desc }

// Entries returns the selected paths.
func (m *FieldMask) Entries() []MaskEntry { return m.entries }

// Len returns the number of selected paths.
func (m *FieldMask) Len() int { return len(m.entries) }

// IsEmpty reports whether nothing is selected.
func (m *FieldMask) IsEmpty() bool { return len(m.entries) == 0 }

// Paths returns the selected paths with their update suffixes, so that
// reducing the result again yields the same mask.
func (m *FieldMask) Paths() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Node.FullName + e.Update.suffix()
	}
	return out
}

// Contains reports whether path, or one of its ancestors, is selected.
func (m *FieldMask) Contains(path string) bool {
	node, ok := m.desc.Lookup(path)
	if !ok {
		return false
	}
	for _, e := range m.entries {
		if e.Node == node || e.Node.IsAncestorOf(node) {
			return true
		}
	}
	return false
}

// UpdateType returns the update semantics of a selected path.
func (m *FieldMask) UpdateType(path string) (UpdateType, bool) {
	for _, e := range m.entries {
		if e.Node.FullName == path {
			return e.Update, true
		}
	}
	return UpdateReplace, false
}

// Tree returns the projection tree of the mask.
func (m *FieldMask) Tree() ir.PathTree {
	t := ir.PathTree{}
	for _, e := range m.entries {
		t.Add(e.Node.FullName)
	}
	return t
}

// Project copies only the selected fields of record.
func (m *FieldMask) Project(record ir.IRObject) ir.IRObject {
	return ir.Project(record, m.Tree())
}

// Merge applies the masked fields of src onto dst and returns dst.
// Replace overwrites (or clears when src lacks the field), Append adds
// src elements to a repeated field, Delete removes elements equal to any src
// element. Append and Delete on non-repeated fields behave like Replace.
func (m *FieldMask) Merge(dst, src ir.IRObject) (ir.IRObject, error) {
	if dst == nil {
		dst = ir.IRObject{}
	}
	for _, e := range m.entries {
		path := e.Node.FullName
		v := m.desc.get(e.Node, src)

		update := e.Update
		if !e.Node.Repeated {
			update = UpdateReplace
		}

		var err error
		switch update {
		case UpdateAppend:
			if v == nil {
				continue
			}
			dst, err = m.desc.Set(path, dst, ir.CloneValue(v))
		case UpdateDelete:
			if v == nil {
				continue
			}
			dst, err = m.deleteElements(e.Node, dst, v)
		default:
			if v == nil {
				dst, err = m.desc.Clear(path, dst)
			} else {
				dst, err = m.desc.Replace(path, dst, ir.CloneValue(v))
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (m *FieldMask) deleteElements(node *PathNode, dst ir.IRObject, remove ir.IRValue) (ir.IRObject, error) {
	existing, _ := m.desc.get(node, dst).(ir.IRArray)
	if existing == nil {
		return dst, nil
	}
	removeList, ok := remove.(ir.IRArray)
	if !ok {
		removeList = ir.IRArray{remove}
	}
	kept := ir.IRArray{}
	for _, elem := range existing {
		drop := false
		for _, r := range removeList {
			if ir.Equal(elem, r) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, elem)
		}
	}
	return m.desc.Replace(node.FullName, dst, kept)
}
