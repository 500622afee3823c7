package schema

import (
	"fmt"

	"github.com/roach88/crawlplan/internal/ir"
)

// Kind is the value type of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
	KindEnum
	KindTimestamp
	KindMessage
)

var kindNames = map[Kind]string{
	KindString:    "string",
	KindInt:       "int",
	KindBool:      "bool",
	KindEnum:      "enum",
	KindTimestamp: "timestamp",
	KindMessage:   "message",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// IsStringLike reports whether values of this kind are stored as IRString.
func (k Kind) IsStringLike() bool {
	return k == KindString || k == KindEnum || k == KindTimestamp
}

// Message declares a record or sub-record type.
type Message struct {
	Name   string
	Fields []Field
}

// Field declares one field of a Message.
type Field struct {
	Name     string
	Kind     Kind
	Repeated bool

	// Message is the sub-record type for KindMessage fields.
	Message *Message

	// EnumValues lists enum value names; the first one is the default.
	EnumValues []string
}

// PathNode is one node of a record type's field tree.
type PathNode struct {
	FullName string
	Name     string
	Kind     Kind
	Repeated bool

	// MessageName is the sub-record type name for KindMessage nodes.
	MessageName string

	enumValues []string
	parent     *PathNode
	children   []*PathNode
}

// Parent returns the enclosing node, or nil for the root.
func (n *PathNode) Parent() *PathNode { return n.parent }

// Children returns child nodes in declaration order.
func (n *PathNode) Children() []*PathNode { return n.children }

// IsRoot reports whether n is the record root.
func (n *PathNode) IsRoot() bool { return n.parent == nil }

// IsLeaf reports whether n has no addressable children.
func (n *PathNode) IsLeaf() bool { return len(n.children) == 0 }

// EnumValues returns the declared enum value names.
func (n *PathNode) EnumValues() []string { return n.enumValues }

// Default returns the value an absent field reads as, or nil when the field
// has no scalar default (messages, repeated fields, timestamps).
func (n *PathNode) Default() ir.IRValue {
	if n.Repeated {
		return nil
	}
	switch n.Kind {
	case KindString:
		return ir.IRString("")
	case KindInt:
		return ir.IRInt(0)
	case KindBool:
		return ir.IRBool(false)
	case KindEnum:
		if len(n.enumValues) > 0 {
			return ir.IRString(n.enumValues[0])
		}
		return ir.IRString("")
	}
	return nil
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *PathNode) IsAncestorOf(other *PathNode) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}
