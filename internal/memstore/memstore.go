// Package memstore is an in-memory document table that executes store
// operation plans. It follows the driver contract of package storeop
// literally and serves as the correctness oracle for plans and for other
// drivers.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/storeop"
)

// Table holds the records of one record type.
//
// Thread-safety: Table is safe for concurrent use via internal RWMutex.
type Table struct {
	reg *index.Registry

	mu      sync.RWMutex
	records map[string]ir.IRObject
}

// New creates an empty table for reg's record type.
func New(reg *index.Registry) *Table {
	return &Table{reg: reg, records: make(map[string]ir.IRObject)}
}

// Put inserts or replaces record by primary key.
func (t *Table) Put(record ir.IRObject) error {
	id, err := t.primaryKey(record)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = record.Clone()
	return nil
}

// PutAll inserts records in order, stopping at the first error.
func (t *Table) PutAll(records []ir.IRObject) error {
	for i, rec := range records {
		if err := t.Put(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Get returns a copy of the record with primary key id.
func (t *Table) Get(id string) (ir.IRObject, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Table) primaryKey(record ir.IRObject) (string, error) {
	path := t.reg.Primary().First()
	v, ok := ir.Lookup(record, path)
	if !ok {
		return "", fmt.Errorf("record has no primary key %q", path)
	}
	id, ok := v.(ir.IRString)
	if !ok || id == "" {
		return "", fmt.Errorf("primary key %q must be a non-empty string, got %s", path, ir.Format(v))
	}
	return string(id), nil
}

// row is a record in flight. key is the index key it was read under, kept
// for index-ordered sorts.
type row struct {
	id  string
	rec ir.IRObject
	key ir.IRArray
}

// Execute runs plan and returns copies of the resulting records.
func (t *Table) Execute(plan *storeop.Plan) ([]ir.IRObject, error) {
	if err := storeop.Validate(plan); err != nil {
		return nil, err
	}
	if plan.Table != t.reg.Table() {
		return nil, fmt.Errorf("plan for table %q executed on %q", plan.Table, t.reg.Table())
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var rows []row
	var project ir.PathTree
	for _, op := range plan.Ops {
		var err error
		switch op := op.(type) {
		case storeop.TableScan:
			rows = t.scan()
		case storeop.GetByKey:
			rows, err = t.getByKey(op)
		case storeop.RangeScan:
			rows, err = t.rangeScan(op)
		case storeop.Filter:
			rows = filter(rows, op.Pred)
		case storeop.AndFilter:
			rows = filter(rows, op.Pred)
		case storeop.Sort:
			sortRows(rows, op)
		case storeop.Skip:
			if op.N >= len(rows) {
				rows = nil
			} else {
				rows = rows[op.N:]
			}
		case storeop.Limit:
			if op.N < len(rows) {
				rows = rows[:op.N]
			}
		case storeop.Project:
			project = op.Tree
		default:
			err = fmt.Errorf("unsupported operation %T", op)
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]ir.IRObject, len(rows))
	for i, r := range rows {
		if project != nil {
			out[i] = ir.Project(r.rec, project)
		} else {
			out[i] = r.rec.Clone()
		}
	}
	return out, nil
}

func (t *Table) scan() []row {
	rows := make([]row, 0, len(t.records))
	for id, rec := range t.records {
		rows = append(rows, row{id: id, rec: rec})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}

// entries returns every (key, record) pair of idx in key order, ties by id.
func (t *Table) entries(name string) ([]row, *index.Index, error) {
	idx, ok := t.reg.ByName(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown index %q on %s", name, t.reg.Table())
	}
	var out []row
	for _, r := range t.scan() {
		for _, key := range t.reg.Keys(idx, r.rec) {
			out = append(out, row{id: r.id, rec: r.rec, key: ir.IRArray(key)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := ir.Compare(out[i].key, out[j].key); c != 0 {
			return c < 0
		}
		return out[i].id < out[j].id
	})
	return out, idx, nil
}

func (t *Table) getByKey(op storeop.GetByKey) ([]row, error) {
	entries, _, err := t.entries(op.Index)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var rows []row
	for _, want := range op.Keys {
		for _, e := range entries {
			if !seen[e.id] && ir.Equal(e.key, want) {
				seen[e.id] = true
				rows = append(rows, e)
			}
		}
	}
	return rows, nil
}

func (t *Table) rangeScan(op storeop.RangeScan) ([]row, error) {
	entries, _, err := t.entries(op.Index)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var rows []row
	for _, e := range entries {
		if seen[e.id] || !storeop.InInterval(e.key, op.Lower, op.Upper, op.LowerInclusive, op.UpperInclusive) {
			continue
		}
		seen[e.id] = true
		rows = append(rows, e)
	}
	return rows, nil
}

func filter(rows []row, pred storeop.Predicate) []row {
	out := rows[:0:0]
	for _, r := range rows {
		if storeop.Evaluate(pred, r.rec) {
			out = append(out, r)
		}
	}
	return out
}

// sortRows orders rows; ties always break by id ascending.
func sortRows(rows []row, op storeop.Sort) {
	value := func(r row) ir.IRValue {
		if op.Index != "" {
			return r.key
		}
		return storeop.Read(r.rec, op.Path, op.Default, op.IgnoreCase)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := ir.Compare(value(rows[i]), value(rows[j]))
		if op.Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return rows[i].id < rows[j].id
	})
}
