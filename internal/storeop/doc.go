// Package storeop defines the store operation sequence the planner emits and
// document-store drivers execute.
//
// A Plan is a table name plus an ordered list of Operations:
//
//	[source] → [filter | andFilter]* → [sort]? → [project | skip | limit]*
//
// The source is exactly one of TableScan, GetByKey or RangeScan. Drivers
// stream records from the source through the remaining operations in order.
//
// SEALED INTERFACES:
//
// Operation and Predicate are sealed with marker methods so drivers can
// switch exhaustively:
//
//	switch op := op.(type) {
//	case GetByKey:
//	    // primary or secondary key lookup
//	case RangeScan:
//	    // bounded index scan
//	...
//	}
//
// DRIVER CONTRACT:
//
// Index keys are derived with index.Registry.Keys. An index source yields
// each record at most once, even when several keys of a multi index match.
// Every ordering breaks ties by primary key ascending, whatever the sort
// direction. Evaluate is the reference predicate semantics; drivers that
// translate predicates into another language must agree with it.
//
// IRValue types only: bounds and keys are ir.IRValue, with ir.Min and ir.Max
// standing for unbounded tuple components.
package storeop
