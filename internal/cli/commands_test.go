package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/testutil"
)

const jobType = "CrawlJob"

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

// loadedDB returns a database holding testdata/crawl_jobs.json.
func loadedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "crawl.db")
	_, _, err := execute(t, "load", "--db", db, jobType, filepath.Join("testdata", "crawl_jobs.json"))
	require.NoError(t, err)
	return db
}

// decode unmarshals a JSON CLIResponse and re-decodes its data into v.
func decode(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if v != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, v))
	}
	return resp
}

func recordIDs(t *testing.T, out string) []string {
	t.Helper()
	var records []map[string]any
	resp := decode(t, out, &records)
	require.Equal(t, "ok", resp.Status)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i], _ = r["id"].(string)
	}
	return ids
}

func TestCatalogCommand(t *testing.T) {
	out, _, err := execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "CrawlJob (table crawl_job)")
	assert.Contains(t, out, "labels: meta.label")
	assert.Contains(t, out, "name(meta.name) ignorecase")
	assert.Contains(t, out, "label(meta.label[key,value]) multi")
	assert.Contains(t, out, "unindexed: meta.description, meta.created, meta.created_by, scope_script_id, limits.depth, limits.max_duration_s, limits.max_bytes")
}

func TestUnindexedPaths(t *testing.T) {
	got := unindexedPaths(testutil.Registry())
	assert.Equal(t, []string{"documents_crawled", "disabled", "meta.description"}, got)
}

func TestCatalogCommandJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "catalog")
	require.NoError(t, err)

	var types []TypeSummary
	resp := decode(t, out, &types)
	assert.Equal(t, "ok", resp.Status)
	require.NotEmpty(t, types)

	names := make([]string, len(types))
	for i, ts := range types {
		names[i] = ts.Name
	}
	assert.Contains(t, names, "CrawlJob")
	assert.Contains(t, names, "JobExecution")
}

func TestCatalogCommandBrokenCatalog(t *testing.T) {
	out, _, err := execute(t, "--catalog", filepath.Join("testdata", "broken.cue"), "catalog")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestCatalogCommandMissingCatalog(t *testing.T) {
	out, _, err := execute(t, "--catalog", "/nonexistent/catalog.cue", "catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestExplainCommand(t *testing.T) {
	out, _, err := execute(t, "explain", jobType, filepath.Join("testdata", "ids.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "table(crawl_job)")
	assert.Contains(t, out, ".getByKey(")
	assert.Contains(t, out, "strategy: primary_key")
}

func TestExplainCommandJSONWithSQL(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "explain", "--sql", jobType, filepath.Join("testdata", "by_label.yaml"))
	require.NoError(t, err)

	var result ExplainResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, jobType, result.Type)
	assert.Equal(t, "table(crawl_job)", result.Plan[0])
	assert.NotEmpty(t, result.Strategy)
	assert.NotEmpty(t, result.Chain)
	assert.True(t, strings.HasPrefix(result.SQL, "SELECT id, doc FROM \"crawl_job\""), result.SQL)
	assert.Contains(t, result.SQL, "json_each")
	assert.NotEmpty(t, result.Params)
}

func TestExplainCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"unknown type", []string{"explain", "Nope", filepath.Join("testdata", "ids.yaml")}, ErrCodeUnknownType, ExitCommandError},
		{"missing request", []string{"explain", jobType, "/nonexistent/request.yaml"}, ErrCodeNotFound, ExitCommandError},
		{"unknown request key", []string{"explain", jobType, filepath.Join("testdata", "unknown_key.yaml")}, ErrCodeDecodeFailed, ExitCommandError},
		{"invalid path", []string{"explain", jobType, filepath.Join("testdata", "bad_path.yaml")}, ErrCodeInvalidPath, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decode(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestLoadCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "crawl.db")
	out, _, err := execute(t, "--format", "json", "load", "--db", db, jobType, filepath.Join("testdata", "crawl_jobs.json"))
	require.NoError(t, err)

	var result LoadResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"job-a", "job-b", "job-c"}, result.IDs)
}

func TestLoadCommandText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "crawl.db")
	out, _, err := execute(t, "load", "--db", db, jobType, filepath.Join("testdata", "crawl_jobs.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 3 CrawlJob record(s)")
}

func TestLoadCommandRejectsBadRecords(t *testing.T) {
	db := filepath.Join(t.TempDir(), "crawl.db")
	out, _, err := execute(t, "load", "--db", db, jobType, filepath.Join("testdata", "bad_records.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E102]")

	// Nothing was written.
	out, _, err = execute(t, "--format", "json", "list", "--db", db, jobType, filepath.Join("testdata", "by_label.yaml"))
	require.NoError(t, err)
	assert.Empty(t, recordIDs(t, out))
}

func TestListCommand(t *testing.T) {
	db := loadedDB(t)

	tests := []struct {
		request string
		want    []string
	}{
		{"ids.yaml", []string{"job-c", "job-a"}},
		{"by_config.yaml", []string{"job-a", "job-b"}},
		{"by_label.yaml", []string{"job-a", "job-c"}},
		{"modified_since.yaml", []string{"job-b", "job-a"}},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			out, _, err := execute(t, "--format", "json", "list", "--db", db, jobType, filepath.Join("testdata", tt.request))
			require.NoError(t, err)
			assert.Equal(t, tt.want, recordIDs(t, out))
		})
	}
}

func TestListCommandProjects(t *testing.T) {
	db := loadedDB(t)
	out, _, err := execute(t, "list", "--db", db, jobType, filepath.Join("testdata", "by_label.yaml"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":"job-a","meta":{"name":"Nightly News"}}`, lines[0])
	assert.NotContains(t, out, "crawl_config_id")
}

func TestListCommandInvalidPath(t *testing.T) {
	db := loadedDB(t)
	out, _, err := execute(t, "list", "--db", db, jobType, filepath.Join("testdata", "bad_path.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")
	assert.Contains(t, out, "crawl_config")
}

func TestGetCommand(t *testing.T) {
	db := loadedDB(t)

	out, _, err := execute(t, "--format", "json", "get", "--db", db, jobType, "job-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-b"}, recordIDs(t, out))

	out, _, err = execute(t, "get", "--db", db, jobType, "job-z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestVerboseLogsGoToStderr(t *testing.T) {
	db := loadedDB(t)
	out, errOut, err := execute(t, "--format", "json", "--verbose", "list", "--db", db, jobType, filepath.Join("testdata", "ids.yaml"))
	require.NoError(t, err)
	assert.Contains(t, errOut, "Opened store")
	assert.Equal(t, []string{"job-c", "job-a"}, recordIDs(t, out))
}

func TestUpdateCommand(t *testing.T) {
	db := loadedDB(t)
	patch := filepath.Join("testdata", "relabel.json")

	out, _, err := execute(t, "--format", "json", "update", "--db", db, "--mask", "disabled,meta.label+", jobType, "job-c", patch)
	require.NoError(t, err)
	var records []map[string]any
	decode(t, out, &records)
	require.Len(t, records, 1)
	assert.Equal(t, true, records[0]["disabled"])
	meta := records[0]["meta"].(map[string]any)
	assert.Len(t, meta["label"], 2)
	assert.Equal(t, "Archive", meta["name"])

	// The update is visible to index-backed listing.
	out, _, err = execute(t, "--format", "json", "list", "--db", db, jobType, filepath.Join("testdata", "by_owner.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"job-c"}, recordIDs(t, out))
}

func TestUpdateCommandErrors(t *testing.T) {
	db := loadedDB(t)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"missing record", []string{"--mask", "disabled", jobType, "job-z", filepath.Join("testdata", "relabel.json")}, ExitCommandError, "E005"},
		{"bad mask path", []string{"--mask", "meta.color", jobType, "job-a", filepath.Join("testdata", "relabel.json")}, ExitCommandError, "E101"},
		{"primary key change", []string{"--mask", "id", jobType, "job-a", filepath.Join("testdata", "rename.json")}, ExitCommandError, "E102"},
		{"missing patch", []string{"--mask", "disabled", jobType, "job-a", filepath.Join("testdata", "nope.json")}, ExitCommandError, "E005"},
		{"patch is not an object", []string{"--mask", "disabled", jobType, "job-a", filepath.Join("testdata", "crawl_jobs.json")}, ExitCommandError, "E003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"update", "--db", db}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}

	out, _, err := execute(t, "--format", "json", "get", "--db", db, jobType, "job-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a"}, recordIDs(t, out), "failed updates left job-a in place")
}

func TestMetricsFlag(t *testing.T) {
	db := loadedDB(t)

	_, errOut, err := execute(t, "--format", "json", "--metrics", "list", "--db", db, jobType, filepath.Join("testdata", "ids.yaml"))
	require.NoError(t, err)
	assert.Contains(t, errOut, "# HELP crawlplan_store_plans_executed")
	assert.Contains(t, errOut, `crawlplan_store_rows_returned{table="crawl_job"}`)

	_, errOut, err = execute(t, "list", "--db", db, jobType, filepath.Join("testdata", "ids.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, errOut, "# HELP")
}
