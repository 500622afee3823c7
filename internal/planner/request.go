package planner

import (
	"fmt"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/storeop"
)

// RangeConstraint bounds Path to [From, To). A nil end is unbounded.
type RangeConstraint struct {
	Path string
	From ir.IRValue
	To   ir.IRValue
}

// ListRequest is a declarative list query over one record type.
type ListRequest struct {
	IDs []string

	// QueryTemplate holds example values; QueryMask selects which of its
	// paths constrain the result.
	QueryTemplate ir.IRObject
	QueryMask     []string

	Ranges []RangeConstraint

	OrderByPath     string
	OrderDescending bool

	LabelSelectors []string

	Offset   int
	PageSize int

	// ReturnedFieldsMask projects the result. Empty returns whole records.
	ReturnedFieldsMask []string
}

// Explanation is a compiled request with its planning diagnostics.
type Explanation struct {
	Plan     *storeop.Plan
	Strategy Strategy
	Chain    string
}

// Build compiles req into a plan.
func Build(reg *index.Registry, req ListRequest, opts ...Option) (*storeop.Plan, error) {
	ex, err := Explain(reg, req, opts...)
	if err != nil {
		return nil, err
	}
	return ex.Plan, nil
}

// Explain compiles req and reports how the chain was resolved.
func Explain(reg *index.Registry, req ListRequest, opts ...Option) (*Explanation, error) {
	if req.Offset < 0 {
		return nil, &RequestError{Field: "offset", Reason: "must not be negative"}
	}
	if req.PageSize < 0 {
		return nil, &RequestError{Field: "pageSize", Reason: "must not be negative"}
	}

	o := NewOptimizer(reg, opts...)
	if err := o.want(req); err != nil {
		return nil, err
	}
	if err := o.Optimize(); err != nil {
		return nil, err
	}
	plan, err := o.Render()
	if err != nil {
		return nil, err
	}

	if req.Offset > 0 {
		plan.Ops = append(plan.Ops, storeop.Skip{N: req.Offset})
	}
	if req.PageSize > 0 {
		plan.Ops = append(plan.Ops, storeop.Limit{N: req.PageSize})
	}
	if len(req.ReturnedFieldsMask) > 0 {
		mask, err := o.desc.ReduceMask(req.ReturnedFieldsMask)
		if err != nil {
			return nil, fmt.Errorf("returned fields mask: %w", err)
		}
		plan.Ops = append(plan.Ops, storeop.Project{Tree: mask.Tree()})
	}

	if err := storeop.Validate(plan); err != nil {
		return nil, o.invariant(err.Error(), plan)
	}
	return &Explanation{Plan: plan, Strategy: o.strategy, Chain: o.DescribeChain()}, nil
}

// want registers the constraints implied by req.
func (o *Optimizer) want(req ListRequest) error {
	if len(req.IDs) > 0 {
		ids := make([]ir.IRValue, len(req.IDs))
		for i, id := range req.IDs {
			ids[i] = ir.IRString(id)
		}
		if err := o.WantIDs(ids...); err != nil {
			return err
		}
	}

	if len(req.QueryMask) > 0 {
		mask, err := o.desc.ReduceMask(req.QueryMask)
		if err != nil {
			return fmt.Errorf("query mask: %w", err)
		}
		for _, entry := range mask.Entries() {
			if err := o.wantTemplate(entry.Node, req.QueryTemplate); err != nil {
				return err
			}
		}
	}

	for _, r := range req.Ranges {
		if err := o.WantRange(r.Path, r.From, r.To); err != nil {
			return err
		}
	}

	for _, raw := range req.LabelSelectors {
		sel, err := ParseLabelSelector(raw)
		if err != nil {
			return err
		}
		if err := o.WantLabel(sel); err != nil {
			return err
		}
	}

	if req.OrderByPath != "" {
		if err := o.WantOrderBy(req.OrderByPath, req.OrderDescending); err != nil {
			return err
		}
	}
	return nil
}

// wantTemplate maps one masked template path to constraints: the label
// field to one exact label per element, a repeated scalar to an equality
// over its elements, a scalar to an equality on its value (or default), and
// a sub-record to its scalar leaves present in the template.
func (o *Optimizer) wantTemplate(node *schema.PathNode, template ir.IRObject) error {
	v, err := o.desc.Get(node.FullName, template)
	if err != nil {
		return err
	}

	switch {
	case node.FullName == o.labelPath:
		arr, _ := v.(ir.IRArray)
		for _, elem := range arr {
			key, _ := ir.LookupValue(elem, "key")
			value, _ := ir.LookupValue(elem, "value")
			ks, _ := key.(ir.IRString)
			vs, _ := value.(ir.IRString)
			if err := o.WantLabel(LabelSelector{Match: LabelExact, Key: string(ks), Value: string(vs)}); err != nil {
				return err
			}
		}
		return nil

	case node.Repeated && node.Kind == schema.KindMessage:
		return &schema.InvalidPathError{Path: node.FullName, Type: o.desc.TypeName(), Reason: "repeated message fields cannot be queried by template"}

	case node.Repeated:
		arr, _ := v.(ir.IRArray)
		if len(arr) == 0 {
			return nil
		}
		return o.WantEquality(node.FullName, arr...)

	case node.Kind == schema.KindMessage:
		for _, child := range node.Children() {
			if cv, _ := o.desc.Get(child.FullName, template); cv == nil {
				continue
			}
			if err := o.wantTemplate(child, template); err != nil {
				return err
			}
		}
		return nil
	}

	if v == nil {
		v = node.Default()
	}
	if v == nil {
		return &RequestError{Field: node.FullName, Reason: "query template has no value for masked field"}
	}
	return o.WantEquality(node.FullName, v)
}
