package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/testutil"
)

const jobType = "JobExecution"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixtureCatalog wraps the shared job execution fixture as a catalog.
func fixtureCatalog(t *testing.T, reg *index.Registry) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(&catalog.Type{
		Name:       jobType,
		Table:      testutil.Table,
		LabelPath:  "meta.label",
		Message:    testutil.JobExecution(),
		Descriptor: reg.Descriptor(),
		Registry:   reg,
	})
	require.NoError(t, err)
	return cat
}

// createTestStore opens a store on a fresh database file.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, fixtureCatalog(t, testutil.Registry()), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// loadedStore is createTestStore holding the fixture records.
func loadedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	_, err := s.PutAll(t.Context(), jobType, testutil.Records())
	require.NoError(t, err)
	return s
}

func ids(records []ir.IRObject) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		id, _ := rec["id"].(ir.IRString)
		out[i] = string(id)
	}
	return out
}
