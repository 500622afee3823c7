package storeop

import (
	"fmt"
	"strings"

	"github.com/roach88/crawlplan/internal/ir"
)

func (TableScan) String() string { return "scan()" }

func (op GetByKey) String() string {
	parts := []string{op.Index}
	for _, k := range op.Keys {
		parts = append(parts, formatKey(k))
	}
	return "getByKey(" + strings.Join(parts, ", ") + ")"
}

func (op RangeScan) String() string {
	return fmt.Sprintf("rangeScan(%s, %s)", op.Index,
		formatBounds(ir.Format(op.Lower), ir.Format(op.Upper), op.LowerInclusive, op.UpperInclusive))
}

func (op Filter) String() string    { return "filter(" + formatPred(op.Pred) + ")" }
func (op AndFilter) String() string { return "andFilter(" + formatPred(op.Pred) + ")" }

func (op Sort) String() string {
	var parts []string
	if op.Index != "" {
		parts = append(parts, "index="+op.Index)
	} else {
		parts = append(parts, op.Path)
	}
	if op.Descending {
		parts = append(parts, "desc")
	}
	if op.IgnoreCase {
		parts = append(parts, "ignorecase")
	}
	if op.Index == "" && op.Default != nil {
		parts = append(parts, "default="+ir.Format(op.Default))
	}
	return "orderBy(" + strings.Join(parts, ", ") + ")"
}

func (op Project) String() string {
	return "project(" + strings.Join(op.Tree.Paths(), ", ") + ")"
}

func (op Skip) String() string  { return fmt.Sprintf("skip(%d)", op.N) }
func (op Limit) String() string { return fmt.Sprintf("limit(%d)", op.N) }

func (p Eq) String() string {
	vals := make([]string, len(p.Values))
	for i, v := range p.Values {
		vals[i] = ir.Format(v)
	}
	s := "eq(" + formatPath(p.Path) + ", [" + strings.Join(vals, ",") + "]"
	return s + formatOptions(p.Default, p.IgnoreCase) + ")"
}

func (p Interval) String() string {
	s := "interval(" + formatPath(p.Path) + ", " +
		formatBounds(ir.Format(p.Lower), ir.Format(p.Upper), p.LowerInclusive, p.UpperInclusive)
	return s + formatOptions(p.Default, p.IgnoreCase) + ")"
}

func (p Any) String() string {
	return "any(" + formatPath(p.Path) + ", " + formatPred(p.Where) + ")"
}

func (p And) String() string {
	parts := make([]string, len(p.Predicates))
	for i, sub := range p.Predicates {
		parts[i] = formatPred(sub)
	}
	return "and(" + strings.Join(parts, ", ") + ")"
}

// formatKey unwraps 1-tuples.
func formatKey(k ir.IRArray) string {
	if len(k) == 1 {
		return ir.Format(k[0])
	}
	return ir.Format(k)
}

func formatBounds(lower, upper string, lowerInc, upperInc bool) string {
	lb, rb := "(", ")"
	if lowerInc {
		lb = "["
	}
	if upperInc {
		rb = "]"
	}
	return lb + lower + ", " + upper + rb
}

func formatPath(path string) string {
	if path == "" {
		return "_"
	}
	return path
}

func formatOptions(def ir.IRValue, ignoreCase bool) string {
	var s string
	if def != nil {
		s += ", default=" + ir.Format(def)
	}
	if ignoreCase {
		s += ", ignorecase"
	}
	return s
}

func formatPred(p Predicate) string {
	if p == nil {
		return "<nil>"
	}
	return p.String()
}
