package schema

import (
	"fmt"

	"github.com/roach88/crawlplan/internal/ir"
)

// Get returns the value at path in record, or nil when any segment is
// absent. The parent path is resolved first, so an absent sub-record short
// circuits the lookup.
func (d *Descriptor) Get(path string, record ir.IRObject) (ir.IRValue, error) {
	node, err := d.Node(path)
	if err != nil {
		return nil, err
	}
	return d.get(node, record), nil
}

func (d *Descriptor) get(node *PathNode, record ir.IRObject) ir.IRValue {
	if node.IsRoot() {
		return record
	}
	container, ok := d.get(node.parent, record).(ir.IRObject)
	if !ok {
		return nil
	}
	v, ok := container[node.Name]
	if !ok {
		return nil
	}
	if _, isNull := v.(ir.IRNull); isNull {
		return nil
	}
	return v
}

// GetOrDefault is Get with the field's default value substituted for an
// absent field.
func (d *Descriptor) GetOrDefault(path string, record ir.IRObject) (ir.IRValue, error) {
	node, err := d.Node(path)
	if err != nil {
		return nil, err
	}
	if v := d.get(node, record); v != nil {
		return v, nil
	}
	return node.Default(), nil
}

// Set stores value at path in builder and returns the builder. A nil
// builder starts a new record. Intermediate sub-records are created as
// needed. Setting a repeated field appends: an IRArray value appends each
// element, any other value appends itself.
func (d *Descriptor) Set(path string, builder ir.IRObject, value ir.IRValue) (ir.IRObject, error) {
	return d.set(path, builder, value, true)
}

// Replace is Set without append semantics: repeated fields are overwritten
// by the given array.
func (d *Descriptor) Replace(path string, builder ir.IRObject, value ir.IRValue) (ir.IRObject, error) {
	return d.set(path, builder, value, false)
}

func (d *Descriptor) set(path string, builder ir.IRObject, value ir.IRValue, appendRepeated bool) (ir.IRObject, error) {
	node, err := d.Node(path)
	if err != nil {
		return nil, err
	}
	if builder == nil {
		builder = ir.IRObject{}
	}
	if err := checkKind(node, value); err != nil {
		return nil, err
	}

	container, err := d.subBuilder(node.parent, builder)
	if err != nil {
		return nil, err
	}

	if node.Repeated && appendRepeated {
		existing, _ := container[node.Name].(ir.IRArray)
		merged := append(ir.IRArray{}, existing...)
		if arr, ok := value.(ir.IRArray); ok {
			merged = append(merged, arr...)
		} else {
			merged = append(merged, value)
		}
		container[node.Name] = merged
		return builder, nil
	}

	container[node.Name] = value
	return builder, nil
}

// Clear removes the value at path. Absent parents are left untouched.
func (d *Descriptor) Clear(path string, builder ir.IRObject) (ir.IRObject, error) {
	node, err := d.Node(path)
	if err != nil {
		return nil, err
	}
	if container, ok := d.get(node.parent, builder).(ir.IRObject); ok {
		delete(container, node.Name)
	}
	return builder, nil
}

// subBuilder returns the object holding node's children, creating it and
// every missing ancestor.
func (d *Descriptor) subBuilder(node *PathNode, builder ir.IRObject) (ir.IRObject, error) {
	if node.IsRoot() {
		return builder, nil
	}
	parent, err := d.subBuilder(node.parent, builder)
	if err != nil {
		return nil, err
	}
	switch existing := parent[node.Name].(type) {
	case ir.IRObject:
		return existing, nil
	case nil, ir.IRNull:
		child := ir.IRObject{}
		parent[node.Name] = child
		return child, nil
	default:
		return nil, &ValueError{Path: node.FullName, Kind: KindMessage, Got: fmt.Sprintf("%T", existing)}
	}
}

// checkKind validates a value against the node kind. Repeated nodes accept
// either one element or an IRArray of elements.
func checkKind(node *PathNode, value ir.IRValue) error {
	if node.Repeated {
		if arr, ok := value.(ir.IRArray); ok {
			for _, elem := range arr {
				if !kindMatches(node.Kind, elem) {
					return &ValueError{Path: node.FullName, Kind: node.Kind, Got: fmt.Sprintf("%T", elem)}
				}
			}
			return nil
		}
	}
	if !kindMatches(node.Kind, value) {
		return &ValueError{Path: node.FullName, Kind: node.Kind, Got: fmt.Sprintf("%T", value)}
	}
	return nil
}

func kindMatches(kind Kind, v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString:
		return kind.IsStringLike()
	case ir.IRInt:
		return kind == KindInt
	case ir.IRBool:
		return kind == KindBool
	case ir.IRObject:
		return kind == KindMessage
	}
	return false
}

// CheckValue reports a ValueError when v does not fit the node kind.
func (n *PathNode) CheckValue(v ir.IRValue) error {
	return checkKind(n, v)
}

// NormalizeValue is CheckValue for query values: on success it returns v
// with timestamps in ir.TimestampLayout, so they compare like stored ones.
func (n *PathNode) NormalizeValue(v ir.IRValue) (ir.IRValue, error) {
	if err := checkKind(n, v); err != nil {
		return nil, err
	}
	if n.Kind != KindTimestamp {
		return v, nil
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return v, nil
	}
	ts, err := ir.ParseTimestamp(string(s))
	if err != nil {
		return nil, &ValueError{Path: n.FullName, Kind: n.Kind, Got: err.Error()}
	}
	return ts, nil
}
