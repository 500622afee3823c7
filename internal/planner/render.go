package planner

import (
	"errors"
	"fmt"

	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/storeop"
)

// Render walks the chain and emits the store operations. Every snippet is
// rendered exactly once; any render type the chain position does not allow
// is a PlannerInvariantError, logged before it is returned.
func (o *Optimizer) Render() (*storeop.Plan, error) {
	if !o.optimized {
		return nil, errors.New("render before optimize")
	}

	plan := &storeop.Plan{Table: o.reg.Table()}
	if len(o.chain) == 0 || !isSourceRender(o.snippets[o.chain[0]].render) {
		plan.Ops = append(plan.Ops, storeop.TableScan{})
	}

	rendered := make([]int, len(o.snippets))
	for pos, id := range o.chain {
		rendered[id]++
		if rendered[id] > 1 {
			return nil, o.invariant(fmt.Sprintf("%s linked twice", o.snippets[id].String()), plan)
		}
		ops, err := o.renderSnippet(pos, id)
		if err != nil {
			return nil, o.invariant(err.Error(), plan)
		}
		plan.Ops = append(plan.Ops, ops...)
	}
	for id, n := range rendered {
		if n == 0 {
			return nil, o.invariant(fmt.Sprintf("%s was never rendered", o.snippets[id].String()), plan)
		}
	}
	return plan, nil
}

func isSourceRender(r RenderType) bool {
	switch r {
	case RenderGetByKey, RenderIndexEquality, RenderIndexRange, RenderCompoundTier1, RenderOrderByIndex:
		return true
	}
	return false
}

func (o *Optimizer) renderSnippet(pos, id int) ([]storeop.Operation, error) {
	s := &o.snippets[id]
	desc := s.kind.describe(s.path)

	switch s.render {
	case RenderGetByKey, RenderIndexEquality:
		if pos != 0 {
			return nil, fmt.Errorf("%s: key lookup at chain position %d", desc, pos)
		}
		var keys []ir.IRArray
		switch k := s.kind.(type) {
		case *equality:
			keys = k.keys(s.chosen)
		case *label:
			if k.sel.Match != LabelExact {
				return nil, fmt.Errorf("%s: %s selector cannot be a key lookup", desc, k.sel.Match)
			}
			keys = k.keys(s.chosen)
		default:
			return nil, fmt.Errorf("%s: %s cannot be a key lookup", desc, s.kind.name())
		}
		return []storeop.Operation{storeop.GetByKey{Index: s.chosen.Name, Keys: keys}}, nil

	case RenderIndexRange:
		if pos != 0 {
			return nil, fmt.Errorf("%s: index range at chain position %d", desc, pos)
		}
		b, ok := s.kind.bounds(s)
		if !ok {
			return nil, fmt.Errorf("%s: no scan bounds", desc)
		}
		return []storeop.Operation{b.scan(s.chosen)}, nil

	case RenderCompoundTier1:
		if pos != 0 {
			return nil, fmt.Errorf("%s: compound tier 1 at chain position %d", desc, pos)
		}
		b, ok := s.kind.bounds(s)
		if !ok {
			return nil, fmt.Errorf("%s: no scan bounds", desc)
		}
		if s.next >= 0 && o.snippets[s.next].render == RenderCompoundTier2 {
			n := &o.snippets[s.next]
			nb, ok := n.kind.bounds(n)
			if !ok || n.chosen != s.chosen {
				return nil, fmt.Errorf("%s: tier 2 %s does not share index %s", desc, n.kind.describe(n.path), s.chosen.Name)
			}
			b = b.extend(nb)
		}
		return []storeop.Operation{b.scan(s.chosen)}, nil

	case RenderCompoundTier2:
		if s.prev < 0 || o.snippets[s.prev].render != RenderCompoundTier1 || o.snippets[s.prev].chosen != s.chosen {
			return nil, fmt.Errorf("%s: compound tier 2 without tier 1 on %s", desc, s.chosen.Name)
		}
		if k, isSort := s.kind.(*orderBy); isSort {
			return []storeop.Operation{o.indexSort(s, k)}, nil
		}
		return nil, nil

	case RenderFilter, RenderAndFilter:
		pred := s.kind.predicate(o, s)
		if pred == nil {
			return nil, fmt.Errorf("%s: %s has no filter predicate", desc, s.kind.name())
		}
		if s.render == RenderFilter {
			return []storeop.Operation{storeop.Filter{Pred: pred}}, nil
		}
		if s.prev < 0 || !o.snippets[s.prev].render.filters() {
			return nil, fmt.Errorf("%s: and-filter does not continue a filter", desc)
		}
		return []storeop.Operation{storeop.AndFilter{Pred: pred}}, nil

	case RenderOrderByIndex:
		k, isSort := s.kind.(*orderBy)
		if !isSort {
			return nil, fmt.Errorf("%s: %s cannot order an index", desc, s.kind.name())
		}
		if s.prev < 0 {
			if pos != 0 {
				return nil, fmt.Errorf("%s: ordered scan at chain position %d", desc, pos)
			}
			return []storeop.Operation{fullBound().scan(s.chosen), o.indexSort(s, k)}, nil
		}
		p := &o.snippets[s.prev]
		if p.chosen != s.chosen || !p.render.scans() {
			return nil, fmt.Errorf("%s: ordered read of %s behind %s", desc, s.chosen.Name, p.String())
		}
		return []storeop.Operation{o.indexSort(s, k)}, nil

	case RenderOrderBy:
		k, isSort := s.kind.(*orderBy)
		if !isSort {
			return nil, fmt.Errorf("%s: %s cannot sort", desc, s.kind.name())
		}
		return []storeop.Operation{storeop.Sort{
			Path:       s.path,
			Descending: k.descending,
			IgnoreCase: o.reg.IgnoreCase(s.path),
			Default:    s.node.Default(),
		}}, nil
	}
	return nil, fmt.Errorf("%s: unhandled render type %s", desc, s.render)
}

func (o *Optimizer) indexSort(s *Snippet, k *orderBy) storeop.Sort {
	return storeop.Sort{
		Path:       s.path,
		Index:      s.chosen.Name,
		Descending: k.descending,
		IgnoreCase: s.chosen.IgnoreCase,
	}
}

// invariant builds and logs a PlannerInvariantError.
func (o *Optimizer) invariant(msg string, partial *storeop.Plan) error {
	err := &PlannerInvariantError{
		Message: msg,
		Chain:   o.DescribeChain(),
		Partial: partial,
	}
	attrs := []any{"table", o.reg.Table(), "error", msg, "chain", err.Chain}
	if partial != nil {
		attrs = append(attrs, "plan", partial.String())
	}
	o.logger.Error("planner invariant violated", attrs...)
	return err
}
