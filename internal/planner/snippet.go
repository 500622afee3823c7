package planner

import (
	"fmt"
	"strings"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/storeop"
)

// RenderType is the operation shape a snippet compiles to.
type RenderType int

const (
	RenderUnset RenderType = iota
	RenderGetByKey
	RenderIndexEquality
	RenderIndexRange
	RenderCompoundTier1
	RenderCompoundTier2
	RenderFilter
	RenderAndFilter
	RenderOrderByIndex
	RenderOrderBy
)

var renderNames = [...]string{
	"Unset", "GetByKey", "IndexEquality", "IndexRange", "CompoundTier1",
	"CompoundTier2", "Filter", "AndFilter", "OrderByIndex", "OrderBy",
}

func (r RenderType) String() string {
	if int(r) < len(renderNames) {
		return renderNames[r]
	}
	return fmt.Sprintf("RenderType(%d)", int(r))
}

// scans reports whether r reads an index range in key order.
func (r RenderType) scans() bool {
	return r == RenderIndexRange || r == RenderCompoundTier1 || r == RenderCompoundTier2
}

func (r RenderType) filters() bool {
	return r == RenderFilter || r == RenderAndFilter
}

// Snippet is one constraint of a request. Snippets live in the Optimizer's
// arena and link by arena position; -1 means no link.
type Snippet struct {
	kind        kind
	path        string
	node        *schema.PathNode
	bestIndexes []*index.Index
	chosen      *index.Index
	render      RenderType
	prev, next  int
	canBeBehind []behind
}

// behind is a legal predecessor: the snippet at arena position from,
// sharing index, or with a nil index for pure filter chaining.
type behind struct {
	from  int
	index *index.Index
}

// Path returns the constrained field path.
func (s *Snippet) Path() string { return s.path }

// Kind names the constraint kind.
func (s *Snippet) Kind() string { return s.kind.name() }

// BestIndexes returns the indexes usable for this constraint, most specific
// first.
func (s *Snippet) BestIndexes() []*index.Index { return s.bestIndexes }

// ChosenIndex returns the index the snippet resolved to, or nil.
func (s *Snippet) ChosenIndex() *index.Index { return s.chosen }

// RenderType returns the resolved render type.
func (s *Snippet) RenderType() RenderType { return s.render }

func (s *Snippet) String() string {
	var b strings.Builder
	b.WriteString(s.kind.describe(s.path))
	if s.chosen != nil {
		b.WriteString(" idx=" + s.chosen.Name)
	}
	b.WriteString(" render=" + s.render.String())
	return b.String()
}

// kind is the per-constraint behaviour. Each kind decides its legal
// predecessors, its render type when the chain search left it unset, and
// what it contributes to an index scan or a filter.
type kind interface {
	name() string
	priority() int
	behind(o *Optimizer, self int) []behind
	evaluateRenderType(o *Optimizer, self int)
	bounds(s *Snippet) (keyBound, bool)
	predicate(o *Optimizer, s *Snippet) storeop.Predicate
	describe(path string) string
}

// keyBound is a snippet's contribution to an index scan: leading key parts
// and the inclusivity of each end.
type keyBound struct {
	lower, upper       ir.IRArray
	lowerInc, upperInc bool
}

func point(parts ...ir.IRValue) keyBound {
	return keyBound{
		lower:    append(ir.IRArray(nil), parts...),
		upper:    append(ir.IRArray(nil), parts...),
		lowerInc: true,
		upperInc: true,
	}
}

// fullBound spans every key of a component.
func fullBound() keyBound {
	return keyBound{lower: ir.IRArray{ir.Min}, upper: ir.IRArray{ir.Max}, lowerInc: true, upperInc: true}
}

// extend appends the next component's bound; inclusivity follows the last
// component.
func (b keyBound) extend(n keyBound) keyBound {
	return keyBound{
		lower:    append(append(ir.IRArray(nil), b.lower...), n.lower...),
		upper:    append(append(ir.IRArray(nil), b.upper...), n.upper...),
		lowerInc: n.lowerInc,
		upperInc: n.upperInc,
	}
}

// pad fills the tuples to width. An inclusive lower end pads with Min and an
// exclusive one with Max, so every key extending the bound prefix is kept or
// dropped as a whole; the upper end mirrors that.
func (b keyBound) pad(width int) keyBound {
	out := keyBound{
		lower:    append(ir.IRArray(nil), b.lower...),
		upper:    append(ir.IRArray(nil), b.upper...),
		lowerInc: b.lowerInc,
		upperInc: b.upperInc,
	}
	for len(out.lower) < width {
		if b.lowerInc {
			out.lower = append(out.lower, ir.Min)
		} else {
			out.lower = append(out.lower, ir.Max)
		}
	}
	for len(out.upper) < width {
		if b.upperInc {
			out.upper = append(out.upper, ir.Max)
		} else {
			out.upper = append(out.upper, ir.Min)
		}
	}
	return out
}

func (b keyBound) fold() keyBound {
	return keyBound{
		lower:    ir.FoldValue(b.lower).(ir.IRArray),
		upper:    ir.FoldValue(b.upper).(ir.IRArray),
		lowerInc: b.lowerInc,
		upperInc: b.upperInc,
	}
}

func (b keyBound) scan(idx *index.Index) storeop.RangeScan {
	if idx.IgnoreCase {
		b = b.fold()
	}
	b = b.pad(idx.KeyWidth())
	return storeop.RangeScan{
		Index:          idx.Name,
		Lower:          b.lower,
		Upper:          b.upper,
		LowerInclusive: b.lowerInc,
		UpperInclusive: b.upperInc,
	}
}

// filterBehind is the predecessor set of kinds that never consume an index
// after another snippet: every other snippet, for filter chaining only.
func filterBehind(o *Optimizer, self int) []behind {
	var out []behind
	for j := range o.snippets {
		if j != self {
			out = append(out, behind{from: j})
		}
	}
	return out
}

// continuation is the render type of an unindexed snippet following prev.
func (o *Optimizer) continuation(prev int) RenderType {
	if o.snippets[prev].render.filters() {
		return RenderAndFilter
	}
	return RenderFilter
}

// scalarPredicate wraps p in Any for repeated fields.
func scalarPredicate(s *Snippet, elem storeop.Predicate) storeop.Predicate {
	if s.node.Repeated {
		return storeop.Any{Path: s.path, Where: elem}
	}
	return elem
}

// equality is a get-all constraint: the field is one of values.
type equality struct {
	values []ir.IRValue
}

func (*equality) name() string  { return "equality" }
func (*equality) priority() int { return 20 }

func (*equality) behind(o *Optimizer, self int) []behind { return filterBehind(o, self) }

func (k *equality) evaluateRenderType(o *Optimizer, self int) {
	s := &o.snippets[self]
	if s.prev >= 0 {
		s.render = o.continuation(s.prev)
		return
	}
	primary := o.reg.Primary()
	if s.path == primary.First() && index.Contains(s.bestIndexes, primary) {
		s.chosen, s.render = primary, RenderGetByKey
		return
	}
	if idx := firstSingle(s.bestIndexes); idx != nil {
		s.chosen, s.render = idx, RenderIndexEquality
		return
	}
	if len(k.values) == 1 {
		if idx := compoundPrefix(s.bestIndexes, s.path); idx != nil {
			s.chosen, s.render = idx, RenderCompoundTier1
			return
		}
	}
	s.render = RenderFilter
}

func (k *equality) bounds(*Snippet) (keyBound, bool) {
	if len(k.values) != 1 {
		return keyBound{}, false
	}
	return point(k.values[0]), true
}

func (k *equality) keys(idx *index.Index) []ir.IRArray {
	var keys []ir.IRArray
	for _, v := range k.values {
		if idx.IgnoreCase {
			v = ir.FoldValue(v)
		}
		key := ir.IRArray{v}
		dup := false
		for _, seen := range keys {
			if ir.Equal(seen, key) {
				dup = true
				break
			}
		}
		if !dup {
			keys = append(keys, key)
		}
	}
	return keys
}

func (k *equality) predicate(o *Optimizer, s *Snippet) storeop.Predicate {
	eq := storeop.Eq{
		Values:     append([]ir.IRValue(nil), k.values...),
		IgnoreCase: o.reg.IgnoreCase(s.path),
	}
	if s.node.Repeated {
		return scalarPredicate(s, eq)
	}
	eq.Path = s.path
	eq.Default = s.node.Default()
	return eq
}

func (k *equality) describe(path string) string {
	return "eq(" + path + ", " + ir.Format(ir.IRArray(k.values)) + ")"
}

// valueRange is a half-open interval [from, to). ir.Min and ir.Max stand
// for open ends.
type valueRange struct {
	from, to ir.IRValue
}

func (*valueRange) name() string  { return "range" }
func (*valueRange) priority() int { return 20 }

func (*valueRange) behind(o *Optimizer, self int) []behind { return filterBehind(o, self) }

func (k *valueRange) evaluateRenderType(o *Optimizer, self int) {
	s := &o.snippets[self]
	if s.prev >= 0 {
		s.render = o.continuation(s.prev)
		return
	}
	if idx := firstSingle(s.bestIndexes); idx != nil {
		s.chosen, s.render = idx, RenderIndexRange
		return
	}
	s.render = RenderFilter
}

func (k *valueRange) bounds(*Snippet) (keyBound, bool) {
	return keyBound{
		lower:    ir.IRArray{k.from},
		upper:    ir.IRArray{k.to},
		lowerInc: true,
	}, true
}

func (k *valueRange) predicate(o *Optimizer, s *Snippet) storeop.Predicate {
	iv := storeop.Interval{
		Lower:          k.from,
		Upper:          k.to,
		LowerInclusive: true,
		IgnoreCase:     o.reg.IgnoreCase(s.path),
	}
	if s.node.Repeated {
		return scalarPredicate(s, iv)
	}
	iv.Path = s.path
	iv.Default = s.node.Default()
	return iv
}

func (k *valueRange) describe(path string) string {
	return "range(" + path + ", [" + ir.Format(k.from) + ", " + ir.Format(k.to) + "))"
}

// label matches the repeated label field against a selector.
type label struct {
	sel LabelSelector
}

func (*label) name() string  { return "label" }
func (*label) priority() int { return 10 }

func (*label) behind(o *Optimizer, self int) []behind { return filterBehind(o, self) }

func (k *label) evaluateRenderType(o *Optimizer, self int) {
	s := &o.snippets[self]
	if s.prev >= 0 {
		s.render = o.continuation(s.prev)
		return
	}
	if idx := k.preferredIndex(s.bestIndexes); idx != nil {
		s.chosen, s.render = idx, k.indexRender()
		return
	}
	s.render = RenderFilter
}

// preferredIndex picks the start index. A key-less selector prefers the
// value-only index even when a (key, value) index could serve it.
func (k *label) preferredIndex(best []*index.Index) *index.Index {
	if !k.sel.Match.HasKey() {
		for _, idx := range best {
			if idx.ElemIs("value") {
				return idx
			}
		}
	}
	if len(best) > 0 {
		return best[0]
	}
	return nil
}

func (k *label) indexRender() RenderType {
	if k.sel.Match == LabelExact {
		return RenderIndexEquality
	}
	return RenderIndexRange
}

func (k *label) bounds(s *Snippet) (keyBound, bool) {
	if s.chosen == nil {
		return keyBound{}, false
	}
	return k.sel.bounds(s.chosen), true
}

func (k *label) keys(idx *index.Index) []ir.IRArray {
	key := ir.IRArray{ir.IRString(k.sel.Key), ir.IRString(k.sel.Value)}
	if idx.IgnoreCase {
		key = ir.FoldValue(key).(ir.IRArray)
	}
	return []ir.IRArray{key}
}

func (k *label) predicate(o *Optimizer, s *Snippet) storeop.Predicate {
	return storeop.Any{Path: s.path, Where: k.sel.predicate(o.reg.IgnoreCase(s.path))}
}

func (k *label) describe(string) string {
	return "label(" + k.sel.String() + ")"
}

// orderBy sorts by a field. It has no filter predicate.
type orderBy struct {
	descending bool
}

func (*orderBy) name() string  { return "orderBy" }
func (*orderBy) priority() int { return 100 }

// behind pairs the sort with every non-sort snippet sharing an index, so the
// chain search can keep a scan's key order instead of sorting.
func (*orderBy) behind(o *Optimizer, self int) []behind {
	out := filterBehind(o, self)
	s := &o.snippets[self]
	for j := range o.snippets {
		if j == self {
			continue
		}
		other := &o.snippets[j]
		if _, same := other.kind.(*orderBy); same {
			continue
		}
		for _, idx := range index.Intersect(s.bestIndexes, other.bestIndexes) {
			out = append(out, behind{from: j, index: idx})
		}
	}
	return out
}

func (k *orderBy) evaluateRenderType(o *Optimizer, self int) {
	s := &o.snippets[self]
	if s.prev < 0 {
		if idx := firstSingle(s.bestIndexes); idx != nil {
			s.chosen, s.render = idx, RenderOrderByIndex
			return
		}
	}
	s.render = RenderOrderBy
}

func (*orderBy) bounds(*Snippet) (keyBound, bool) { return fullBound(), true }

func (*orderBy) predicate(*Optimizer, *Snippet) storeop.Predicate { return nil }

func (k *orderBy) describe(path string) string {
	if k.descending {
		return "orderBy(" + path + " desc)"
	}
	return "orderBy(" + path + ")"
}

// firstSingle returns the first single-field index.
func firstSingle(list []*index.Index) *index.Index {
	for _, idx := range list {
		if !idx.IsCompound() {
			return idx
		}
	}
	return nil
}

// compoundPrefix returns the first non-multi compound index led by path.
func compoundPrefix(list []*index.Index, path string) *index.Index {
	for _, idx := range list {
		if idx.IsCompound() && !idx.Multi && idx.First() == path {
			return idx
		}
	}
	return nil
}
