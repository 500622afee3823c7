package storeop

import (
	"strings"

	"github.com/roach88/crawlplan/internal/ir"
)

// Operation is one step of a Plan.
//
// This is a sealed interface: only types in this package implement it.
type Operation interface {
	operation()
	String() string
}

// Plan is the resolved operation sequence for one request. Plans are built
// and consumed within one request and never shared.
type Plan struct {
	Table string
	Ops   []Operation
}

// Source returns the first operation, or nil for an empty plan.
func (p *Plan) Source() Operation {
	if len(p.Ops) == 0 {
		return nil
	}
	return p.Ops[0]
}

// Lines renders one line per operation, the table first.
func (p *Plan) Lines() []string {
	lines := make([]string, 0, len(p.Ops)+1)
	lines = append(lines, "table("+p.Table+")")
	for _, op := range p.Ops {
		lines = append(lines, "  ."+op.String())
	}
	return lines
}

// String renders the chained textual form used in diagnostics and golden
// files:
//
//	table(crawl_job)
//	  .rangeScan(state, [["CREATED"], ["CREATED"]])
//	  .orderBy(index=state)
func (p *Plan) String() string {
	return strings.Join(p.Lines(), "\n")
}

// TableScan reads every record of the table in primary key order.
type TableScan struct{}

func (TableScan) operation() {}

// GetByKey looks up records by exact index key. Each key is a tuple of
// the index's key width; primary and single-field indexes use 1-tuples.
type GetByKey struct {
	Index string
	Keys  []ir.IRArray
}

func (GetByKey) operation() {}

// RangeScan reads index entries between two key tuples in key order.
// Both tuples span the full index key width; ir.Min and ir.Max components
// are unbounded.
type RangeScan struct {
	Index          string
	Lower          ir.IRArray
	Upper          ir.IRArray
	LowerInclusive bool
	UpperInclusive bool
}

func (RangeScan) operation() {}

// Filter keeps records matching Pred.
type Filter struct {
	Pred Predicate
}

func (Filter) operation() {}

// AndFilter continues the preceding Filter or AndFilter. It is semantically a
// Filter; the distinct type records that the planner composed it with an
// unindexed predecessor so drivers may fuse them into one predicate.
type AndFilter struct {
	Pred Predicate
}

func (AndFilter) operation() {}

// Sort orders records. With Index set it is an ordered index read and must
// directly follow a RangeScan over that index; Path then names the index's
// ordering field for diagnostics only. Without Index it is a comparator sort
// over Path, reading Default for absent fields and folding strings when
// IgnoreCase is set.
type Sort struct {
	Path       string
	Index      string
	Descending bool
	IgnoreCase bool
	Default    ir.IRValue
}

func (Sort) operation() {}

// Project keeps only the fields in Tree.
type Project struct {
	Tree ir.PathTree
}

func (Project) operation() {}

// Skip drops the first N records.
type Skip struct {
	N int
}

func (Skip) operation() {}

// Limit keeps at most N records.
type Limit struct {
	N int
}

func (Limit) operation() {}

// IsSource reports whether op reads from the table.
func IsSource(op Operation) bool {
	switch op.(type) {
	case TableScan, GetByKey, RangeScan:
		return true
	}
	return false
}

// IsTail reports whether op is a projection or paging operation.
func IsTail(op Operation) bool {
	switch op.(type) {
	case Project, Skip, Limit:
		return true
	}
	return false
}
