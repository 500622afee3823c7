package storesql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/storeop"
)

// Query is a compiled plan.
type Query struct {
	SQL    string
	Params []any

	// Project is applied to decoded records; nil returns whole records.
	Project ir.PathTree
}

// Compile converts plan into one SELECT over the record type's table.
// Values are always bound as parameters, never interpolated. Every query
// ends its ORDER BY with id so results are deterministic.
func Compile(plan *storeop.Plan, reg *index.Registry) (Query, error) {
	if err := storeop.Validate(plan); err != nil {
		return Query{}, err
	}
	if plan.Table != reg.Table() {
		return Query{}, fmt.Errorf("plan for table %q compiled against %q", plan.Table, reg.Table())
	}

	c := &compiler{reg: reg, desc: reg.Descriptor()}
	offset, limit := 0, -1
	var q Query
	for _, op := range plan.Ops {
		var err error
		switch op := op.(type) {
		case storeop.TableScan:
			c.order = []string{"id ASC"}
		case storeop.GetByKey:
			err = c.getByKey(op)
		case storeop.RangeScan:
			err = c.rangeScan(op)
		case storeop.Filter:
			err = c.filter(op.Pred)
		case storeop.AndFilter:
			err = c.filter(op.Pred)
		case storeop.Sort:
			err = c.sort(op)
		case storeop.Skip:
			if limit >= 0 {
				limit = max(limit-op.N, 0)
			}
			offset += op.N
		case storeop.Limit:
			if limit < 0 || op.N < limit {
				limit = op.N
			}
		case storeop.Project:
			q.Project = op.Tree
		default:
			err = fmt.Errorf("unsupported operation %T", op)
		}
		if err != nil {
			return Query{}, fmt.Errorf("compile %s: %w", op.String(), err)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT id, doc FROM " + quoteIdent(reg.Table()))
	if len(c.where) > 0 {
		b.WriteString(" WHERE " + strings.Join(c.where, " AND "))
	}
	order := c.order
	if order[len(order)-1] != "id ASC" {
		order = append(order, "id ASC")
	}
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))

	q.Params = append(c.params, c.orderParams...)
	if offset > 0 || limit >= 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		q.Params = append(q.Params, int64(limit), int64(offset))
	}
	q.SQL = b.String()
	return q, nil
}

type compiler struct {
	reg  *index.Registry
	desc *schema.Descriptor

	where       []string
	params      []any
	order       []string
	orderParams []any
	aliases     int
}

func (c *compiler) alias() string {
	c.aliases++
	return "e" + strconv.Itoa(c.aliases)
}

func (c *compiler) bind(v ir.IRValue) (string, error) {
	p, err := param(v)
	if err != nil {
		return "", err
	}
	c.params = append(c.params, p)
	return "?", nil
}

// key is the SQL form of an index key: component expressions and, for
// multi indexes, the json_each source the element components read from.
type key struct {
	comps []string
	each  string
}

// wrap scopes cond to one element of a multi index.
func (k key) wrap(cond string) string {
	if k.each == "" {
		return cond
	}
	return "EXISTS (SELECT 1 FROM " + k.each + " WHERE " + cond + ")"
}

func (c *compiler) key(idx *index.Index) (key, error) {
	if idx.Primary {
		return key{comps: []string{"id"}}, nil
	}
	var k key
	for _, path := range idx.Paths {
		node, err := c.desc.Node(path)
		if err != nil {
			return key{}, err
		}
		if !node.Repeated {
			k.comps = append(k.comps, readExpr("doc", path, node.Default(), idx.IgnoreCase))
			continue
		}
		alias := c.alias()
		k.each = "json_each(doc, " + jsonPath(path) + ") AS " + alias
		if len(idx.Elem) == 0 {
			k.comps = append(k.comps, foldExpr(alias+".value", idx.IgnoreCase))
			continue
		}
		for _, e := range idx.Elem {
			k.comps = append(k.comps, foldExpr("coalesce(json_extract("+alias+".value, "+jsonPath(e)+"), '')", idx.IgnoreCase))
		}
	}
	return k, nil
}

func (c *compiler) index(name string) (*index.Index, error) {
	idx, ok := c.reg.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown index %q on %s", name, c.reg.Table())
	}
	return idx, nil
}

func (c *compiler) getByKey(op storeop.GetByKey) error {
	idx, err := c.index(op.Index)
	if err != nil {
		return err
	}
	k, err := c.key(idx)
	if err != nil {
		return err
	}
	// A multi index needs its own element scan to rank records.
	rk := k
	if k.each != "" {
		if rk, err = c.key(idx); err != nil {
			return err
		}
	}

	var matches, ranks []string
	c.orderParams = nil
	for i, want := range op.Keys {
		if len(want) != len(k.comps) {
			return fmt.Errorf("key %s does not match the width of %s", ir.Format(want), idx.Name)
		}
		eq, err := c.tupleCompare(k.comps, "=", want)
		if err != nil {
			return err
		}
		matches = append(matches, eq)

		ph, _ := tuple(len(want))
		ranks = append(ranks, fmt.Sprintf("WHEN %s = %s THEN %d", row(rk.comps), ph, i))
		for _, v := range want {
			p, _ := param(v)
			c.orderParams = append(c.orderParams, p)
		}
	}
	c.where = append(c.where, k.wrap("("+strings.Join(matches, " OR ")+")"))

	// Records rank by the first requested key they match.
	rank := "CASE " + strings.Join(ranks, " ") + " END"
	if rk.each != "" {
		rank = "(SELECT min(" + rank + ") FROM " + rk.each + ")"
	}
	c.order = []string{rank + " ASC", "id ASC"}
	return nil
}

func (c *compiler) rangeScan(op storeop.RangeScan) error {
	idx, err := c.index(op.Index)
	if err != nil {
		return err
	}
	k, err := c.key(idx)
	if err != nil {
		return err
	}
	if len(op.Lower) != len(k.comps) || len(op.Upper) != len(k.comps) {
		return fmt.Errorf("bounds do not match the width of %s", idx.Name)
	}

	var conds []string
	lower, err := c.bound(k.comps, op.Lower, true, op.LowerInclusive)
	if err != nil {
		return err
	}
	upper, err := c.bound(k.comps, op.Upper, false, op.UpperInclusive)
	if err != nil {
		return err
	}
	for _, cond := range []string{lower, upper} {
		if cond != "" {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		conds = []string{"1"}
	}
	c.where = append(c.where, k.wrap(strings.Join(conds, " AND ")))

	if k.each != "" {
		c.order = []string{"id ASC"}
		return nil
	}
	c.order = nil
	for _, comp := range k.comps {
		c.order = append(c.order, comp+" ASC")
	}
	return nil
}

// bound compiles one end of a key range. Key parts after the first sentinel
// are dropped: a Min or Max part makes the comparison on the prefix before
// it decide the result, strictly or not depending on which sentinel and
// which end.
func (c *compiler) bound(comps []string, b ir.IRArray, lower, inclusive bool) (string, error) {
	cut := len(b)
	for i, v := range b {
		if ir.IsSentinel(v) {
			cut = i
			break
		}
	}

	op := ""
	switch {
	case cut == len(b) && lower && inclusive:
		op = ">="
	case cut == len(b) && lower:
		op = ">"
	case cut == len(b) && inclusive:
		op = "<="
	case cut == len(b):
		op = "<"
	default:
		// Min at the lower end or Max at the upper end admits every key
		// sharing the prefix; the other way round admits none of them.
		admits := lower != (ir.Compare(b[cut], ir.Max) == 0)
		switch {
		case admits && cut == 0:
			return "", nil
		case cut == 0:
			return "0", nil
		case admits && lower:
			op = ">="
		case admits:
			op = "<="
		case lower:
			op = ">"
		default:
			op = "<"
		}
	}
	return c.tupleCompare(comps[:cut], op, b[:cut])
}

func (c *compiler) tupleCompare(comps []string, op string, values ir.IRArray) (string, error) {
	ph, err := tuple(len(values))
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if _, err := c.bind(v); err != nil {
			return "", err
		}
	}
	return row(comps) + " " + op + " " + ph, nil
}

func (c *compiler) filter(pred storeop.Predicate) error {
	sql, err := c.predicate("doc", pred)
	if err != nil {
		return err
	}
	c.where = append(c.where, sql)
	return nil
}

// predicate compiles pred against root, a JSON document expression.
func (c *compiler) predicate(root string, pred storeop.Predicate) (string, error) {
	switch p := pred.(type) {
	case storeop.Eq:
		expr := readExpr(root, p.Path, p.Default, p.IgnoreCase)
		phs := make([]string, len(p.Values))
		for i, v := range p.Values {
			if p.IgnoreCase {
				v = ir.FoldValue(v)
			}
			ph, err := c.bind(v)
			if err != nil {
				return "", err
			}
			phs[i] = ph
		}
		return expr + " IN (" + strings.Join(phs, ", ") + ")", nil

	case storeop.Interval:
		expr := readExpr(root, p.Path, p.Default, p.IgnoreCase)
		lower, upper := p.Lower, p.Upper
		if p.IgnoreCase {
			lower, upper = ir.FoldValue(lower), ir.FoldValue(upper)
		}
		var conds []string
		for _, end := range []struct {
			v         ir.IRValue
			isLower   bool
			inclusive bool
		}{{lower, true, p.LowerInclusive}, {upper, false, p.UpperInclusive}} {
			cond, err := c.bound([]string{expr}, ir.IRArray{end.v}, end.isLower, end.inclusive)
			if err != nil {
				return "", err
			}
			if cond != "" {
				conds = append(conds, cond)
			}
		}
		if len(conds) == 0 {
			return "1", nil
		}
		return "(" + strings.Join(conds, " AND ") + ")", nil

	case storeop.Any:
		alias := c.alias()
		where, err := c.predicate(alias+".value", p.Where)
		if err != nil {
			return "", err
		}
		return "EXISTS (SELECT 1 FROM json_each(" + root + ", " + jsonPath(p.Path) + ") AS " + alias + " WHERE " + where + ")", nil

	case storeop.And:
		parts := make([]string, len(p.Predicates))
		for i, sub := range p.Predicates {
			sql, err := c.predicate(root, sub)
			if err != nil {
				return "", err
			}
			parts[i] = sql
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
	return "", fmt.Errorf("unsupported predicate %T", pred)
}

func (c *compiler) sort(op storeop.Sort) error {
	dir := " ASC"
	if op.Descending {
		dir = " DESC"
	}
	c.orderParams = nil
	if op.Index == "" {
		c.order = []string{readExpr("doc", op.Path, op.Default, op.IgnoreCase) + dir}
		return nil
	}

	idx, err := c.index(op.Index)
	if err != nil {
		return err
	}
	if idx.Multi {
		return fmt.Errorf("cannot order by multi index %s", idx.Name)
	}
	k, err := c.key(idx)
	if err != nil {
		return err
	}
	c.order = nil
	for _, comp := range k.comps {
		c.order = append(c.order, comp+dir)
	}
	return nil
}

// readExpr reads path under root with default substitution. A field
// without a default reads as 0, which orders below any string the way null
// orders in ir.Compare and equals a bound null.
func readExpr(root, path string, def ir.IRValue, fold bool) string {
	expr := root
	if path != "" {
		expr = "json_extract(" + root + ", " + jsonPath(path) + ")"
	}
	fallback := "0"
	if def != nil {
		fallback = literal(def)
	}
	return foldExpr("coalesce("+expr+", "+fallback+")", fold)
}

func foldExpr(expr string, fold bool) string {
	if fold {
		return "fold(" + expr + ")"
	}
	return expr
}

func row(comps []string) string {
	if len(comps) == 1 {
		return comps[0]
	}
	return "(" + strings.Join(comps, ", ") + ")"
}

func tuple(n int) (string, error) {
	if n == 0 {
		return "", fmt.Errorf("empty key tuple")
	}
	if n == 1 {
		return "?", nil
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")", nil
}

// jsonPath renders a dotted field path as a quoted SQLite JSON path.
func jsonPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		b.WriteString(`."` + seg + `"`)
	}
	return quoteString(b.String())
}

// literal renders a schema default. Defaults come from the catalog, not
// from requests; they are inlined so index expressions stay constant.
func literal(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return quoteString(string(val))
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRBool:
		if val {
			return "1"
		}
		return "0"
	}
	return "0"
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// param converts a key or predicate value to a driver parameter. Null binds
// as 0, matching the null marker of readExpr.
func param(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.IRNull:
		return int64(0), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	}
	return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
}
