package storeop

import (
	"fmt"
	"strings"
)

// ValidationError lists every shape violation found in a plan.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid plan: " + strings.Join(e.Problems, "; ")
}

// Validate checks plan shape:
//  1. exactly one source operation, and it comes first
//  2. andFilter directly follows filter or andFilter
//  3. at most one sort; an index sort directly follows a rangeScan on
//     the same index
//  4. project, skip and limit come after every other operation, each at
//     most once, with non-negative counts
//  5. rangeScan bounds are non-empty tuples of equal width
//  6. predicates are complete: eq has values, any has a condition
//
// Validate is a pure function with no side effects.
func Validate(plan *Plan) error {
	v := &validator{}
	v.validatePlan(plan)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePlan(plan *Plan) {
	if plan == nil {
		v.addProblem("nil plan")
		return
	}
	if plan.Table == "" {
		v.addProblem("missing table")
	}
	if len(plan.Ops) == 0 {
		v.addProblem("no operations")
		return
	}
	if !IsSource(plan.Ops[0]) {
		v.addProblem("op 0: %s is not a source operation", plan.Ops[0].String())
	}

	seenTail := make(map[string]bool)
	sorts := 0
	for i, op := range plan.Ops {
		if i > 0 && IsSource(op) {
			v.addProblem("op %d: second source %s", i, op.String())
		}
		if len(seenTail) > 0 && !IsTail(op) {
			v.addProblem("op %d: %s after projection or paging", i, op.String())
		}

		switch op := op.(type) {
		case TableScan:
		case GetByKey:
			if op.Index == "" {
				v.addProblem("op %d: getByKey without index", i)
			}
			if len(op.Keys) == 0 {
				v.addProblem("op %d: getByKey without keys", i)
			}
		case RangeScan:
			if op.Index == "" {
				v.addProblem("op %d: rangeScan without index", i)
			}
			if len(op.Lower) == 0 || len(op.Lower) != len(op.Upper) {
				v.addProblem("op %d: rangeScan bounds must be tuples of equal width", i)
			}
		case Filter:
			v.validatePredicate(i, op.Pred)
		case AndFilter:
			if i == 0 || !isFilter(plan.Ops[i-1]) {
				v.addProblem("op %d: andFilter does not continue a filter", i)
			}
			v.validatePredicate(i, op.Pred)
		case Sort:
			sorts++
			if sorts > 1 {
				v.addProblem("op %d: more than one sort", i)
			}
			if op.Index != "" {
				scan, ok := previous(plan.Ops, i).(RangeScan)
				if !ok || scan.Index != op.Index {
					v.addProblem("op %d: index sort on %s does not follow a rangeScan on it", i, op.Index)
				}
			} else if op.Path == "" {
				v.addProblem("op %d: comparator sort without path", i)
			}
		case Project:
			v.tailOnce(i, "project", seenTail)
		case Skip:
			v.tailOnce(i, "skip", seenTail)
			if op.N < 0 {
				v.addProblem("op %d: negative skip", i)
			}
		case Limit:
			v.tailOnce(i, "limit", seenTail)
			if op.N < 0 {
				v.addProblem("op %d: negative limit", i)
			}
		default:
			v.addProblem("op %d: unknown operation %T", i, op)
		}
	}
}

func (v *validator) tailOnce(i int, name string, seen map[string]bool) {
	if seen[name] {
		v.addProblem("op %d: duplicate %s", i, name)
	}
	seen[name] = true
}

func (v *validator) validatePredicate(i int, p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("op %d: nil predicate", i)
	case Eq:
		if len(pred.Values) == 0 {
			v.addProblem("op %d: eq on %s without values", i, formatPath(pred.Path))
		}
	case Interval:
		if pred.Lower == nil || pred.Upper == nil {
			v.addProblem("op %d: interval on %s missing an endpoint", i, formatPath(pred.Path))
		}
	case Any:
		if pred.Path == "" {
			v.addProblem("op %d: any without path", i)
		}
		v.validatePredicate(i, pred.Where)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(i, sub)
		}
	default:
		v.addProblem("op %d: unknown predicate %T", i, p)
	}
}

func isFilter(op Operation) bool {
	switch op.(type) {
	case Filter, AndFilter:
		return true
	}
	return false
}

func previous(ops []Operation, i int) Operation {
	if i == 0 {
		return nil
	}
	return ops[i-1]
}
