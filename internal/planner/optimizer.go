package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
)

// DefaultLabelPath is the repeated label field of crawler config records.
const DefaultLabelPath = "meta.label"

// Strategy names how the chain start was chosen.
type Strategy string

const (
	StrategyNone           Strategy = "none"
	StrategyPrimaryKey     Strategy = "primary_key"
	StrategyCompound       Strategy = "compound"
	StrategyIndexOrdered   Strategy = "index_ordered"
	StrategyIndex          Strategy = "index"
	StrategyCompoundPrefix Strategy = "compound_prefix"
	StrategyRangeIndex     Strategy = "range_index"
	StrategyOrderedScan    Strategy = "ordered_scan"
	StrategyFullScan       Strategy = "full_scan"
)

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLabelPath sets the repeated field label selectors apply to.
func WithLabelPath(path string) Option {
	return func(o *Optimizer) { o.labelPath = path }
}

// Optimizer builds the snippet chain for one request.
type Optimizer struct {
	reg       *index.Registry
	desc      *schema.Descriptor
	logger    *slog.Logger
	labelPath string

	snippets []Snippet
	linked   []bool
	chain    []int

	strategy  Strategy
	optimized bool
}

// NewOptimizer creates an Optimizer over reg and its record type.
func NewOptimizer(reg *index.Registry, opts ...Option) *Optimizer {
	o := &Optimizer{
		reg:       reg,
		desc:      reg.Descriptor(),
		logger:    slog.Default(),
		labelPath: DefaultLabelPath,
		strategy:  StrategyNone,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WantIDs constrains the primary key to ids.
func (o *Optimizer) WantIDs(ids ...ir.IRValue) error {
	return o.WantEquality(o.reg.Primary().First(), ids...)
}

// WantEquality constrains path to one of values. A second call on the same
// path merges its values into the existing constraint.
func (o *Optimizer) WantEquality(path string, values ...ir.IRValue) error {
	node, err := o.scalarNode(path)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return &RequestError{Field: path, Reason: "equality needs at least one value"}
	}
	values = slices.Clone(values)
	for i, v := range values {
		if values[i], err = node.NormalizeValue(v); err != nil {
			return err
		}
	}

	for i := range o.snippets {
		if eq, ok := o.snippets[i].kind.(*equality); ok && o.snippets[i].path == path {
			eq.values = appendDistinct(eq.values, values...)
			return nil
		}
	}
	o.add(&equality{values: appendDistinct(nil, values...)}, node, o.reg.BestIndexes(path))
	return nil
}

// WantRange constrains path to [from, to). A nil end is unbounded.
func (o *Optimizer) WantRange(path string, from, to ir.IRValue) error {
	node, err := o.scalarNode(path)
	if err != nil {
		return err
	}
	if from == nil {
		from = ir.Min
	}
	if to == nil {
		to = ir.Max
	}
	if !ir.IsSentinel(from) {
		if from, err = node.NormalizeValue(from); err != nil {
			return err
		}
	}
	if !ir.IsSentinel(to) {
		if to, err = node.NormalizeValue(to); err != nil {
			return err
		}
	}
	o.add(&valueRange{from: from, to: to}, node, o.reg.BestIndexes(path))
	return nil
}

// WantLabel constrains the label field by sel.
func (o *Optimizer) WantLabel(sel LabelSelector) error {
	node, err := o.desc.Node(o.labelPath)
	if err != nil {
		return err
	}
	if !node.Repeated || node.Kind != schema.KindMessage {
		return &schema.InvalidPathError{Path: o.labelPath, Type: o.desc.TypeName(), Reason: "not a repeated label field"}
	}
	var best []*index.Index
	for _, idx := range o.reg.BestIndexes(o.labelPath) {
		if sel.usable(idx) {
			best = append(best, idx)
		}
	}
	o.add(&label{sel: sel}, node, best)
	return nil
}

// WantOrderBy sorts by path. Only one sort order is allowed per request.
func (o *Optimizer) WantOrderBy(path string, descending bool) error {
	node, err := o.scalarNode(path)
	if err != nil {
		return err
	}
	if node.Repeated {
		return &schema.InvalidPathError{Path: path, Type: o.desc.TypeName(), Reason: "cannot sort by a repeated field"}
	}
	for i := range o.snippets {
		if _, ok := o.snippets[i].kind.(*orderBy); ok {
			return &RequestError{Field: "orderBy", Reason: fmt.Sprintf("already ordered by %q", o.snippets[i].path)}
		}
	}
	var best []*index.Index
	for _, idx := range o.reg.BestIndexes(path) {
		if !idx.Multi {
			best = append(best, idx)
		}
	}
	o.add(&orderBy{descending: descending}, node, best)
	return nil
}

func (o *Optimizer) scalarNode(path string) (*schema.PathNode, error) {
	node, err := o.desc.Node(path)
	if err != nil {
		return nil, err
	}
	if node.Kind == schema.KindMessage {
		return nil, &schema.InvalidPathError{Path: path, Type: o.desc.TypeName(), Reason: "message fields cannot be constrained"}
	}
	return node, nil
}

func (o *Optimizer) add(k kind, node *schema.PathNode, best []*index.Index) {
	o.snippets = append(o.snippets, Snippet{
		kind:        k,
		path:        node.FullName,
		node:        node,
		bestIndexes: best,
		prev:        -1,
		next:        -1,
	})
	o.linked = append(o.linked, false)
}

func appendDistinct(dst []ir.IRValue, values ...ir.IRValue) []ir.IRValue {
	for _, v := range values {
		dup := false
		for _, have := range dst {
			if ir.Equal(have, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

// Optimize resolves the chain and every snippet's index and render type.
func (o *Optimizer) Optimize() error {
	if o.optimized {
		return errors.New("optimizer already ran")
	}
	o.optimized = true

	for i := range o.snippets {
		o.snippets[i].canBeBehind = o.snippets[i].kind.behind(o, i)
	}

	pool := make([]int, len(o.snippets))
	for i := range pool {
		pool[i] = i
	}
	sort.SliceStable(pool, func(a, b int) bool {
		return o.snippets[pool[a]].kind.priority() < o.snippets[pool[b]].kind.priority()
	})
	if len(pool) == 0 {
		return nil
	}

	pool = o.findBestStart(pool)
	for len(pool) > 0 {
		var ok bool
		if pool, ok = o.findNext(pool); !ok {
			break
		}
	}

	for _, id := range o.chain {
		s := &o.snippets[id]
		if s.render == RenderUnset {
			s.kind.evaluateRenderType(o, id)
		}
		if s.chosen != nil && !index.Contains(s.bestIndexes, s.chosen) {
			return o.invariant(fmt.Sprintf("%s chose index %s outside its best indexes", s.kind.describe(s.path), s.chosen.Name), nil)
		}
	}

	o.logger.Debug("plan chain resolved",
		"table", o.reg.Table(),
		"strategy", string(o.strategy),
		"chain", o.DescribeChain(),
	)
	return nil
}

// findBestStart links the chain start, and the snippets it absorbs, and
// returns the remaining pool. Rules are tried in order; the first match wins.
func (o *Optimizer) findBestStart(pool []int) []int {
	for _, rule := range []struct {
		strategy Strategy
		try      func([]int) bool
	}{
		{StrategyPrimaryKey, o.startPrimaryKey},
		{StrategyCompound, o.startCompound},
		{StrategyIndexOrdered, o.startIndexOrdered},
		{StrategyIndex, o.startIndex},
		{StrategyCompoundPrefix, o.startCompoundPrefix},
		{StrategyRangeIndex, o.startRangeIndex},
		{StrategyOrderedScan, o.startOrderedScan},
	} {
		if rule.try(pool) {
			o.strategy = rule.strategy
			return o.unlinked(pool)
		}
	}

	// Full scan: the first snippet by priority starts a filter chain.
	o.strategy = StrategyFullScan
	o.link(pool[0])
	return o.unlinked(pool)
}

// startPrimaryKey: an equality on the primary key becomes a key lookup.
func (o *Optimizer) startPrimaryKey(pool []int) bool {
	primary := o.reg.Primary()
	for _, id := range pool {
		s := &o.snippets[id]
		if _, ok := s.kind.(*equality); !ok || s.path != primary.First() || !index.Contains(s.bestIndexes, primary) {
			continue
		}
		s.chosen, s.render = primary, RenderGetByKey
		o.link(id)
		return true
	}
	return false
}

// startCompound: a single-value equality on the first component of a
// two-component index plus a range or sort on its second component read one
// compound range. A range tier also absorbs a sort on the second component.
func (o *Optimizer) startCompound(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		eq, ok := s.kind.(*equality)
		if !ok || len(eq.values) != 1 {
			continue
		}
		for _, idx := range s.bestIndexes {
			if len(idx.Paths) != 2 || idx.Multi || idx.First() != s.path {
				continue
			}
			tid := o.findInPool(pool, id, func(t *Snippet) bool {
				switch t.kind.(type) {
				case *valueRange, *orderBy:
					return t.path == idx.Paths[1] && index.Contains(t.bestIndexes, idx)
				}
				return false
			})
			if tid < 0 {
				continue
			}

			t := &o.snippets[tid]
			s.chosen, s.render = idx, RenderCompoundTier1
			t.chosen, t.render = idx, RenderCompoundTier2
			o.link(id)
			o.link(tid)

			if _, isRange := t.kind.(*valueRange); isRange {
				uid := o.findInPool(pool, -1, func(u *Snippet) bool {
					_, isSort := u.kind.(*orderBy)
					return isSort && u.path == idx.Paths[1] && index.Contains(u.bestIndexes, idx)
				})
				if uid >= 0 {
					u := &o.snippets[uid]
					u.chosen, u.render = idx, RenderOrderByIndex
					o.link(uid)
				}
			}
			return true
		}
	}
	return false
}

// startIndexOrdered: a range, label or single-value equality sharing a
// single-field index with the sort reads that index in order.
func (o *Optimizer) startIndexOrdered(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		switch k := s.kind.(type) {
		case *valueRange, *label:
		case *equality:
			if len(k.values) != 1 {
				continue
			}
		default:
			continue
		}
		for _, tid := range pool {
			t := &o.snippets[tid]
			if _, ok := t.kind.(*orderBy); !ok {
				continue
			}
			for _, idx := range index.Intersect(s.bestIndexes, t.bestIndexes) {
				if idx.Multi || idx.IsCompound() {
					continue
				}
				s.chosen, s.render = idx, RenderIndexRange
				t.chosen, t.render = idx, RenderOrderByIndex
				o.link(id)
				o.link(tid)
				return true
			}
		}
	}
	return false
}

// startIndex: an equality or label with a single-field index.
func (o *Optimizer) startIndex(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		switch k := s.kind.(type) {
		case *equality:
			idx := firstSingle(s.bestIndexes)
			if idx == nil {
				continue
			}
			s.chosen, s.render = idx, RenderIndexEquality
		case *label:
			idx := k.preferredIndex(s.bestIndexes)
			if idx == nil {
				continue
			}
			s.chosen, s.render = idx, k.indexRender()
		default:
			continue
		}
		o.link(id)
		return true
	}
	return false
}

// startCompoundPrefix: a single-value equality on the first component of a
// compound index reads the tier-1 range of that value.
func (o *Optimizer) startCompoundPrefix(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		eq, ok := s.kind.(*equality)
		if !ok || len(eq.values) != 1 {
			continue
		}
		if idx := compoundPrefix(s.bestIndexes, s.path); idx != nil {
			s.chosen, s.render = idx, RenderCompoundTier1
			o.link(id)
			return true
		}
	}
	return false
}

// startRangeIndex: a range with a single-field index.
func (o *Optimizer) startRangeIndex(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		if _, ok := s.kind.(*valueRange); !ok {
			continue
		}
		if idx := firstSingle(s.bestIndexes); idx != nil {
			s.chosen, s.render = idx, RenderIndexRange
			o.link(id)
			return true
		}
	}
	return false
}

// startOrderedScan: a sort with a single-field index reads the whole index
// in order.
func (o *Optimizer) startOrderedScan(pool []int) bool {
	for _, id := range pool {
		s := &o.snippets[id]
		if _, ok := s.kind.(*orderBy); !ok {
			continue
		}
		if idx := firstSingle(s.bestIndexes); idx != nil {
			s.chosen, s.render = idx, RenderOrderByIndex
			o.link(id)
			return true
		}
	}
	return false
}

// findNext links one snippet behind the chain tail: first one continuing the
// tail's index scan in key order, otherwise the first that can follow as a
// pure filter.
func (o *Optimizer) findNext(pool []int) ([]int, bool) {
	tail := o.chain[len(o.chain)-1]

	for _, id := range pool {
		s := &o.snippets[id]
		for _, b := range s.canBeBehind {
			if b.from != tail || b.index == nil || !o.keepsOrder(tail, id, b.index) {
				continue
			}
			s.chosen, s.render = b.index, RenderOrderByIndex
			o.link(id)
			return o.unlinked(pool), true
		}
	}

	for _, id := range pool {
		for _, b := range o.snippets[id].canBeBehind {
			if b.from == tail && b.index == nil {
				o.link(id)
				return o.unlinked(pool), true
			}
		}
	}
	return pool, false
}

// keepsOrder reports whether the tail's scan over idx already yields records
// in sort order for snippet id: the scan must be the chain source and idx
// must end with the sort path with every earlier component fixed.
func (o *Optimizer) keepsOrder(tail, id int, idx *index.Index) bool {
	t, s := &o.snippets[tail], &o.snippets[id]
	if _, isSort := s.kind.(*orderBy); !isSort {
		return false
	}
	if t.chosen != idx || !t.render.scans() || idx.Multi {
		return false
	}
	if idx.Paths[len(idx.Paths)-1] != s.path {
		return false
	}
	switch len(idx.Paths) {
	case 1:
		return true
	case 2:
		first := &o.snippets[o.chain[0]]
		return first.render == RenderCompoundTier1 && first.chosen == idx
	}
	return false
}

func (o *Optimizer) findInPool(pool []int, skip int, match func(*Snippet) bool) int {
	for _, id := range pool {
		if id == skip || o.linked[id] {
			continue
		}
		if match(&o.snippets[id]) {
			return id
		}
	}
	return -1
}

// link appends id to the chain. Linked snippets leave the pool, which keeps
// the chain acyclic.
func (o *Optimizer) link(id int) {
	if o.linked[id] {
		return
	}
	o.linked[id] = true
	if n := len(o.chain); n > 0 {
		tail := o.chain[n-1]
		o.snippets[tail].next = id
		o.snippets[id].prev = tail
	}
	o.chain = append(o.chain, id)
}

func (o *Optimizer) unlinked(pool []int) []int {
	out := pool[:0:0]
	for _, id := range pool {
		if !o.linked[id] {
			out = append(out, id)
		}
	}
	return out
}

// Strategy returns how the chain start was chosen.
func (o *Optimizer) Strategy() Strategy { return o.strategy }

// Chain returns the resolved snippets in chain order.
func (o *Optimizer) Chain() []*Snippet {
	out := make([]*Snippet, len(o.chain))
	for i, id := range o.chain {
		out[i] = &o.snippets[id]
	}
	return out
}

// DescribeChain renders the chain for diagnostics. Snippets left out of the
// chain are listed as unlinked.
func (o *Optimizer) DescribeChain() string {
	parts := make([]string, len(o.chain))
	for i, id := range o.chain {
		parts[i] = o.snippets[id].String()
	}
	out := strings.Join(parts, " -> ")
	var loose []string
	for id := range o.snippets {
		if !o.linked[id] {
			loose = append(loose, o.snippets[id].String())
		}
	}
	if len(loose) > 0 {
		out += " | unlinked: " + strings.Join(loose, ", ")
	}
	return out
}
