// Package schema describes crawler record types as trees of dotted field
// paths and resolves those paths against records.
//
// A record type is declared once, either in Go (Message/Field literals) or
// through the CUE catalog in internal/catalog, and turned into an immutable
// Descriptor by Describe. Descriptors are shared read-only by every request;
// nothing in this package mutates them after construction.
//
// Descent rules:
//   - message fields descend into their sub-fields
//   - empty sub-messages are leaves
//   - timestamps are opaque leaves
//   - repeated fields are marked Repeated and do not descend, so paths below
//     a repeated field are never addressable
//
// FieldMask reduces a requested path set to the shortest non-overlapping
// prefixes; a trailing "+" or "-" on a path selects append or delete update
// semantics for repeated fields.
package schema
