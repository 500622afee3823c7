package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/testutil"
)

func TestPut_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	for _, rec := range testutil.Records() {
		id, err := s.Put(ctx, jobType, rec)
		require.NoError(t, err)

		got, ok, err := s.Get(ctx, jobType, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, ir.Equal(rec, got), "record %s changed: %s", id, ir.Format(got))
	}
}

func TestPut_NormalizesTimestamps(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.Put(ctx, jobType, ir.Obj(
		ir.O("id", ir.IRString("x1")),
		ir.O("start_time", ir.IRString("2024-01-01T02:00:00+02:00")),
	))
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, jobType, "x1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("2024-01-01T00:00:00.000000000Z"), got["start_time"])
}

func TestPut_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRString("x1")), ir.O("state", ir.IRString("CREATED"))))
	require.NoError(t, err)
	_, err = s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRString("x1")), ir.O("state", ir.IRString("RUNNING"))))
	require.NoError(t, err)

	got, _, err := s.Get(ctx, jobType, "x1")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("RUNNING"), got["state"])
}

func TestPut_GeneratesMissingIDs(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(NewFixedGenerator("gen-1", "gen-2")))
	ctx := t.Context()

	id, err := s.Put(ctx, jobType, ir.Obj(ir.O("job_id", ir.IRString("job-a"))))
	require.NoError(t, err)
	assert.Equal(t, "gen-1", id)

	id, err = s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRNull{})))
	require.NoError(t, err)
	assert.Equal(t, "gen-2", id)

	got, ok, err := s.Get(ctx, jobType, "gen-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("gen-1"), got["id"])
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.Generate()
	b := UUIDv7Generator{}.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestPut_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	t.Run("unknown type", func(t *testing.T) {
		_, err := s.Put(ctx, "Nope", ir.Obj(ir.O("id", ir.IRString("x"))))
		var unknown *catalog.UnknownTypeError
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("undeclared field", func(t *testing.T) {
		_, err := s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRString("x")), ir.O("color", ir.IRString("red"))))
		assert.True(t, schema.IsInvalidPath(err))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRString(""))))
		assert.ErrorContains(t, err, "must be a non-empty string")
	})

	t.Run("undeclared enum value", func(t *testing.T) {
		_, err := s.Put(ctx, jobType, ir.Obj(ir.O("id", ir.IRString("x")), ir.O("state", ir.IRString("PAUSED"))))
		var verr *schema.ValueError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestPutAll_IsAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.PutAll(ctx, jobType, []ir.IRObject{
		ir.Obj(ir.O("id", ir.IRString("a"))),
		ir.Obj(ir.O("id", ir.IRString("b")), ir.O("documents_crawled", ir.IRString("many"))),
	})
	assert.ErrorContains(t, err, "record 1")

	_, ok, err := s.Get(ctx, jobType, "a")
	require.NoError(t, err)
	assert.False(t, ok, "first record of a failed batch was stored")
}

func TestDelete(t *testing.T) {
	s := loadedStore(t)
	ctx := t.Context()

	removed, err := s.Delete(ctx, jobType, "e01")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, jobType, "e01")
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err := s.Get(ctx, jobType, "e01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	s := loadedStore(t)
	ctx := t.Context()

	t.Run("replace", func(t *testing.T) {
		patch := ir.Obj(ir.O("state", ir.IRString("RUNNING")), ir.O("job_id", ir.IRString("ignored")))
		got, ok, err := s.Update(ctx, jobType, "e01", []string{"state"}, patch)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.IRString("RUNNING"), got["state"])
		assert.Equal(t, ir.IRString("job-a"), got["job_id"], "unmasked field changed")

		stored, _, err := s.Get(ctx, jobType, "e01")
		require.NoError(t, err)
		assert.True(t, ir.Equal(got, stored), "stored record differs: %s", ir.Format(stored))
	})

	t.Run("clears absent field", func(t *testing.T) {
		got, ok, err := s.Update(ctx, jobType, "e02", []string{"documents_crawled"}, ir.IRObject{})
		require.NoError(t, err)
		require.True(t, ok)
		_, has := got["documents_crawled"]
		assert.False(t, has)
	})

	t.Run("append and delete", func(t *testing.T) {
		patch := ir.Obj(
			ir.O("tags", ir.Strings("weekly")),
			ir.O("meta", ir.Obj(ir.O("label", testutil.Labels("env", "prod")))),
		)
		got, ok, err := s.Update(ctx, jobType, "e01", []string{"tags+", "meta.label-"}, patch)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.Strings("news", "daily", "weekly"), got["tags"])
		assert.Equal(t, testutil.Labels("team", "ab"), got["meta"].(ir.IRObject)["label"])
	})

	t.Run("normalizes timestamps", func(t *testing.T) {
		patch := ir.Obj(ir.O("start_time", ir.IRString("2024-01-01T02:00:00+02:00")))
		got, _, err := s.Update(ctx, jobType, "e03", []string{"start_time"}, patch)
		require.NoError(t, err)
		assert.Equal(t, ir.IRString("2024-01-01T00:00:00.000000000Z"), got["start_time"])
	})

	t.Run("missing record", func(t *testing.T) {
		got, ok, err := s.Update(ctx, jobType, "nope", []string{"state"}, ir.IRObject{})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("invalid mask path", func(t *testing.T) {
		_, _, err := s.Update(ctx, jobType, "e01", []string{"color"}, ir.IRObject{})
		assert.True(t, schema.IsInvalidPath(err))
	})

	t.Run("primary key cannot change", func(t *testing.T) {
		_, _, err := s.Update(ctx, jobType, "e04", []string{"id"}, ir.Obj(ir.O("id", ir.IRString("e99"))))
		assert.ErrorIs(t, err, ErrPrimaryKeyChanged)

		_, _, err = s.Update(ctx, jobType, "e04", []string{"id"}, ir.IRObject{})
		assert.ErrorIs(t, err, ErrPrimaryKeyChanged)

		_, ok, err := s.Get(ctx, jobType, "e99")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid value rolls back", func(t *testing.T) {
		_, _, err := s.Update(ctx, jobType, "e05", []string{"state"}, ir.Obj(ir.O("state", ir.IRString("PAUSED"))))
		var verr *schema.ValueError
		require.ErrorAs(t, err, &verr)

		got, _, err := s.Get(ctx, jobType, "e05")
		require.NoError(t, err)
		assert.Equal(t, ir.IRString("FAILED"), got["state"])
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := s.Update(ctx, "Nope", "e01", []string{"state"}, ir.IRObject{})
		var unknown *catalog.UnknownTypeError
		assert.ErrorAs(t, err, &unknown)
	})
}
