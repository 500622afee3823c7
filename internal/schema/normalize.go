package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/crawlplan/internal/ir"
)

// Normalize checks record against the field tree and returns a copy with
// timestamps rewritten to ir.TimestampLayout, so stored values order
// chronologically. Every present field must be declared and hold a value of
// its kind; enum values must be declared. Null values count as absent.
// Elements of repeated message fields are only checked to be objects.
func (d *Descriptor) Normalize(record ir.IRObject) (ir.IRObject, error) {
	return d.normalize(d.root, record)
}

func (d *Descriptor) normalize(parent *PathNode, obj ir.IRObject) (ir.IRObject, error) {
	out := make(ir.IRObject, len(obj))
	for _, name := range obj.SortedKeys() {
		v := obj[name]
		path := joinPath(parent.FullName, name)
		if _, isNull := v.(ir.IRNull); isNull {
			out[name] = v
			continue
		}
		node, ok := d.nodes[path]
		if !ok {
			return nil, &InvalidPathError{Path: path, Type: d.typeName, Reason: "not a declared field"}
		}

		if !node.Repeated {
			nv, err := d.normalizeValue(node, v)
			if err != nil {
				return nil, err
			}
			out[name] = nv
			continue
		}
		arr, ok := v.(ir.IRArray)
		if !ok {
			return nil, &ValueError{Path: path, Kind: node.Kind, Got: fmt.Sprintf("%T, want a list", v)}
		}
		elems := make(ir.IRArray, len(arr))
		for i, elem := range arr {
			if !kindMatches(node.Kind, elem) {
				return nil, &ValueError{Path: path, Kind: node.Kind, Got: fmt.Sprintf("%T", elem)}
			}
			nv, err := d.normalizeScalar(node, elem)
			if err != nil {
				return nil, err
			}
			elems[i] = nv
		}
		out[name] = elems
	}
	return out, nil
}

func (d *Descriptor) normalizeValue(node *PathNode, v ir.IRValue) (ir.IRValue, error) {
	if err := checkKind(node, v); err != nil {
		return nil, err
	}
	if sub, ok := v.(ir.IRObject); ok {
		if node.IsLeaf() {
			return sub.Clone(), nil
		}
		return d.normalize(node, sub)
	}
	return d.normalizeScalar(node, v)
}

func (d *Descriptor) normalizeScalar(node *PathNode, v ir.IRValue) (ir.IRValue, error) {
	switch node.Kind {
	case KindTimestamp:
		ts, err := ir.ParseTimestamp(string(v.(ir.IRString)))
		if err != nil {
			return nil, &ValueError{Path: node.FullName, Kind: node.Kind, Got: err.Error()}
		}
		return ts, nil
	case KindEnum:
		if !slices.Contains(node.enumValues, string(v.(ir.IRString))) {
			return nil, &ValueError{Path: node.FullName, Kind: node.Kind, Got: fmt.Sprintf("undeclared value %q", v)}
		}
	case KindMessage:
		if obj, ok := v.(ir.IRObject); ok {
			return obj.Clone(), nil
		}
	}
	return v, nil
}
