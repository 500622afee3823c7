package storeop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/ir"
)

func key(vals ...ir.IRValue) ir.IRArray { return ir.IRArray(vals) }

func TestValidate_ValidPlans(t *testing.T) {
	plans := map[string]*Plan{
		"key lookup": {Table: "seed", Ops: []Operation{
			GetByKey{Index: "id", Keys: []ir.IRArray{key(ir.IRString("a"))}},
		}},
		"ordered scan with paging": {Table: "seed", Ops: []Operation{
			RangeScan{Index: "state", Lower: key(ir.Min), Upper: key(ir.Max), LowerInclusive: true, UpperInclusive: true},
			Sort{Path: "state", Index: "state", Descending: true},
			Filter{Pred: Eq{Path: "kind", Values: []ir.IRValue{ir.IRString("SEED")}}},
			Skip{N: 5},
			Limit{N: 10},
		}},
		"filter chain": {Table: "seed", Ops: []Operation{
			TableScan{},
			Filter{Pred: Eq{Path: "a", Values: []ir.IRValue{ir.IRInt(1)}}},
			AndFilter{Pred: Any{Path: "tags", Where: Eq{Values: []ir.IRValue{ir.IRString("x")}}}},
			AndFilter{Pred: Interval{Path: "b", Lower: ir.Min, Upper: ir.IRInt(3), LowerInclusive: true}},
			Sort{Path: "meta.name", IgnoreCase: true},
			Project{Tree: ir.NewPathTree("id")},
		}},
	}
	for name, plan := range plans {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, Validate(plan))
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	eq := Eq{Path: "a", Values: []ir.IRValue{ir.IRInt(1)}}
	tests := []struct {
		name string
		plan *Plan
		want string
	}{
		{"nil", nil, "nil plan"},
		{"no table", &Plan{Ops: []Operation{TableScan{}}}, "missing table"},
		{"empty", &Plan{Table: "t"}, "no operations"},
		{"filter first", &Plan{Table: "t", Ops: []Operation{Filter{Pred: eq}}}, "not a source"},
		{"two sources", &Plan{Table: "t", Ops: []Operation{TableScan{}, TableScan{}}}, "second source"},
		{"dangling andFilter", &Plan{Table: "t", Ops: []Operation{
			RangeScan{Index: "a", Lower: key(ir.Min), Upper: key(ir.Max)}, AndFilter{Pred: eq},
		}}, "does not continue a filter"},
		{"index sort without scan", &Plan{Table: "t", Ops: []Operation{
			TableScan{}, Sort{Path: "a", Index: "a"},
		}}, "does not follow a rangeScan"},
		{"index sort on other index", &Plan{Table: "t", Ops: []Operation{
			RangeScan{Index: "b", Lower: key(ir.Min), Upper: key(ir.Max)}, Sort{Path: "a", Index: "a"},
		}}, "does not follow a rangeScan"},
		{"two sorts", &Plan{Table: "t", Ops: []Operation{
			TableScan{}, Sort{Path: "a"}, Sort{Path: "b"},
		}}, "more than one sort"},
		{"filter after limit", &Plan{Table: "t", Ops: []Operation{
			TableScan{}, Limit{N: 1}, Filter{Pred: eq},
		}}, "after projection or paging"},
		{"duplicate skip", &Plan{Table: "t", Ops: []Operation{
			TableScan{}, Skip{N: 1}, Skip{N: 2},
		}}, "duplicate skip"},
		{"negative limit", &Plan{Table: "t", Ops: []Operation{TableScan{}, Limit{N: -1}}}, "negative limit"},
		{"empty keys", &Plan{Table: "t", Ops: []Operation{GetByKey{Index: "id"}}}, "without keys"},
		{"ragged bounds", &Plan{Table: "t", Ops: []Operation{
			RangeScan{Index: "a", Lower: key(ir.Min), Upper: key(ir.Max, ir.Max)},
		}}, "equal width"},
		{"eq without values", &Plan{Table: "t", Ops: []Operation{
			TableScan{}, Filter{Pred: And{Predicates: []Predicate{Eq{Path: "a"}}}},
		}}, "eq on a without values"},
		{"nil predicate", &Plan{Table: "t", Ops: []Operation{TableScan{}, Filter{}}}, "nil predicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.plan)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	err := Validate(&Plan{Ops: []Operation{Filter{}, Limit{N: -1}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 4)
}
