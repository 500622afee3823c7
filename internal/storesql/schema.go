package storesql

import (
	"fmt"
	"strings"

	"github.com/roach88/crawlplan/internal/index"
)

// Schema returns the statements that create reg's table and one expression
// index per non-multi secondary index. Statements are idempotent.
//
// Multi indexes get no SQLite index: their keys live inside JSON arrays
// and are matched by scanning json_each.
func Schema(reg *index.Registry) ([]string, error) {
	table := quoteIdent(reg.Table())
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS " + table + " (\n" +
			"    id TEXT PRIMARY KEY,\n" +
			"    doc TEXT NOT NULL\n" +
			")",
	}

	c := &compiler{reg: reg, desc: reg.Descriptor()}
	for _, idx := range reg.Indexes() {
		if idx.Primary || idx.Multi {
			continue
		}
		k, err := c.key(idx)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", idx.Name, err)
		}
		name := quoteIdent(reg.Table() + "_" + idx.Name)
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s, id)",
			name, table, strings.Join(k.comps, ", ")))
	}
	return stmts, nil
}
