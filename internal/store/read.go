package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/planner"
	"github.com/roach88/crawlplan/internal/storeop"
	"github.com/roach88/crawlplan/internal/storesql"
)

// Get returns the record of the named type with primary key id.
// Returns (nil, false, nil) if no record exists.
func (s *Store) Get(ctx context.Context, typeName, id string) (ir.IRObject, bool, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}

	var doc string
	err = s.db.QueryRowContext(ctx, `SELECT doc FROM `+quoteIdent(t.Table)+` WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", t.Name, err)
	}
	rec, err := unmarshalDoc(doc)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", t.Name, err)
	}
	return rec, true, nil
}

// List plans req against the named type and executes the plan.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) List(ctx context.Context, typeName string, req planner.ListRequest) ([]ir.IRObject, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	ex, err := planner.Explain(t.Registry, req, t.PlannerOptions(s.logger)...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name, err)
	}
	PlansExecuted.WithLabelValues(t.Table, string(ex.Strategy)).Inc()
	return s.execute(ctx, t, ex.Plan)
}

// Execute runs plan against the table it names.
func (s *Store) Execute(ctx context.Context, plan *storeop.Plan) ([]ir.IRObject, error) {
	t, err := s.catalog.Lookup(plan.Table)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return s.execute(ctx, t, plan)
}

func (s *Store) execute(ctx context.Context, t *catalog.Type, plan *storeop.Plan) ([]ir.IRObject, error) {
	q, err := storesql.Compile(plan, t.Registry)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", t.Name, err)
	}
	if _, full := plan.Source().(storeop.TableScan); full {
		FullScans.WithLabelValues(t.Table).Inc()
	}

	start := time.Now()
	stmt, err := s.prepare(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", t.Name, err)
	}
	rows, err := stmt.QueryContext(ctx, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	defer rows.Close()

	records := []ir.IRObject{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		rec, err := unmarshalDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		if q.Project != nil {
			rec = ir.Project(rec, q.Project)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.Name, err)
	}

	QueryDuration.WithLabelValues(t.Table).Observe(time.Since(start).Seconds())
	RowsReturned.WithLabelValues(t.Table).Add(float64(len(records)))
	s.logger.Debug("plan executed", "table", t.Table, "rows", len(records), "sql", q.SQL)
	return records, nil
}

// prepare returns a cached prepared statement for query. Evicted statements
// are closed; database/sql defers the close until in-flight rows finish.
func (s *Store) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmts.Get(query); ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if found, _ := s.stmts.ContainsOrAdd(query, stmt); found {
		// Another caller prepared the same query first.
		stmt.Close()
		return s.prepare(ctx, query)
	}
	return stmt, nil
}
