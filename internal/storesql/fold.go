package storesql

import "github.com/roach88/crawlplan/internal/ir"

// FoldName is the SQL function ignore-case expressions call.
const FoldName = "fold"

// FoldFunc implements fold(x): strings are case folded the way ir.Fold does,
// other values pass through. Connections must register it as deterministic
// so expression indexes may use it.
func FoldFunc(v any) any {
	if s, ok := v.(string); ok {
		return ir.Fold(s)
	}
	return v
}
