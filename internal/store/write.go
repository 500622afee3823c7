package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/ir"
)

// ErrPrimaryKeyChanged is returned by Update when the merged record's
// primary key differs from the updated id.
var ErrPrimaryKeyChanged = errors.New("primary key cannot change")

// Put inserts or replaces a record of the named type and returns its
// primary key. A record without a primary key gets one from the store's
// IDGenerator. The record is normalized against the type's descriptor
// before it is stored.
func (s *Store) Put(ctx context.Context, typeName string, record ir.IRObject) (string, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return "", fmt.Errorf("put: %w", err)
	}
	id, err := s.put(ctx, s.db, t, record)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", t.Name, err)
	}
	return id, nil
}

// PutAll stores records in one transaction. Either every record is stored
// or none is.
func (s *Store) PutAll(ctx context.Context, typeName string, records []ir.IRObject) ([]string, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return nil, fmt.Errorf("put all: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("put all: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	ids := make([]string, 0, len(records))
	for i, rec := range records {
		id, err := s.put(ctx, tx, t, rec)
		if err != nil {
			return nil, fmt.Errorf("put all %s: record %d: %w", t.Name, i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("put all: commit: %w", err)
	}
	return ids, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) put(ctx context.Context, db execer, t *catalog.Type, record ir.IRObject) (string, error) {
	rec, err := t.Descriptor.Normalize(record)
	if err != nil {
		return "", err
	}

	path := t.Registry.Primary().First()
	v, ok := ir.Lookup(rec, path)
	if _, isNull := v.(ir.IRNull); !ok || isNull {
		v = ir.IRString(s.ids.Generate())
		if rec, err = t.Descriptor.Replace(path, rec, v); err != nil {
			return "", err
		}
	}
	id, ok := v.(ir.IRString)
	if !ok || id == "" {
		return "", fmt.Errorf("primary key %q must be a non-empty string, got %s", path, ir.Format(v))
	}

	doc, err := marshalDoc(rec)
	if err != nil {
		return "", err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO `+quoteIdent(t.Table)+` (id, doc)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, string(id), doc)
	if err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return string(id), nil
}

// Update applies the fields of patch selected by maskPaths to the stored
// record with primary key id and returns the stored result. A path suffixed
// with "+" appends to a repeated field and "-" removes matching elements.
// The primary key cannot change. Returns (nil, false, nil) if no record
// exists.
func (s *Store) Update(ctx context.Context, typeName, id string, maskPaths []string, patch ir.IRObject) (ir.IRObject, bool, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return nil, false, fmt.Errorf("update: %w", err)
	}
	mask, err := t.Descriptor.ReduceMask(maskPaths)
	if err != nil {
		return nil, false, fmt.Errorf("update %s: %w", t.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("update: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM `+quoteIdent(t.Table)+` WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("update %s: %w", t.Name, err)
	}
	current, err := unmarshalDoc(doc)
	if err != nil {
		return nil, false, fmt.Errorf("update %s: %w", t.Name, err)
	}

	merged, err := mask.Merge(current, patch)
	if err != nil {
		return nil, false, fmt.Errorf("update %s %s: %w", t.Name, id, err)
	}
	if merged, err = t.Descriptor.Normalize(merged); err != nil {
		return nil, false, fmt.Errorf("update %s %s: %w", t.Name, id, err)
	}
	if err := samePrimary(t, merged, id); err != nil {
		return nil, false, fmt.Errorf("update %s %s: %w", t.Name, id, err)
	}
	if _, err := s.put(ctx, tx, t, merged); err != nil {
		return nil, false, fmt.Errorf("update %s %s: %w", t.Name, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("update: commit: %w", err)
	}
	return merged, true, nil
}

func samePrimary(t *catalog.Type, rec ir.IRObject, id string) error {
	path := t.Registry.Primary().First()
	if v, ok := ir.Lookup(rec, path); ok && ir.Equal(v, ir.IRString(id)) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPrimaryKeyChanged, path)
}

// Delete removes the record with primary key id. It reports whether a
// record was removed.
func (s *Store) Delete(ctx context.Context, typeName, id string) (bool, error) {
	t, err := s.catalog.Lookup(typeName)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+quoteIdent(t.Table)+` WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", t.Name, err)
	}
	return n > 0, nil
}
