package planner

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/memstore"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/storeop"
	"github.com/roach88/crawlplan/internal/testutil"
)

type namedRequest struct {
	name string
	req  ListRequest
	// sorted requests compare results in order; others as sets.
	sorted bool
}

func requests() []namedRequest {
	s := func(v string) ir.IRValue { return ir.IRString(v) }
	return []namedRequest{
		{name: "primary_key", req: ListRequest{IDs: []string{"id1", "id2"}}},
		{name: "index_ordered_equality", sorted: true, req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("state", s("CREATED"))),
			QueryMask:     []string{"state"},
			OrderByPath:   "state",
		}},
		{name: "compound_sort", sorted: true, req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("job_id", s("job-a"))),
			QueryMask:     []string{"job_id"},
			OrderByPath:   "state",
		}},
		{name: "compound_range_sort", sorted: true, req: ListRequest{
			QueryTemplate:   ir.Obj(ir.O("job_id", s("job-a"))),
			QueryMask:       []string{"job_id"},
			Ranges:          []RangeConstraint{{Path: "state", From: s("CREATED"), To: s("RUNNING")}},
			OrderByPath:     "state",
			OrderDescending: true,
		}},
		{name: "full_scan_filters", req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("documents_crawled", ir.IRInt(10)), ir.O("disabled", ir.IRBool(false))),
			QueryMask:     []string{"documents_crawled", "disabled"},
			Ranges:        []RangeConstraint{{Path: "meta.description", From: s("a")}},
		}},
		{name: "label_prefix", req: ListRequest{LabelSelectors: []string{"team:ab*"}}},
		{name: "label_any_key", req: ListRequest{LabelSelectors: []string{":prod"}}},
		{name: "labels_and_filter", req: ListRequest{
			LabelSelectors: []string{"env:prod", "team:"},
			Ranges:         []RangeConstraint{{Path: "documents_crawled", From: ir.IRInt(5)}},
		}},
		{name: "name_ignore_case", req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("meta", ir.Obj(ir.O("name", s("NIGHTLY"))))),
			QueryMask:     []string{"meta.name"},
		}},
		{name: "ignore_case_sort_paging", sorted: true, req: ListRequest{
			OrderByPath:        "meta.name",
			Offset:             1,
			PageSize:           2,
			ReturnedFieldsMask: []string{"meta.name", "id"},
		}},
		{name: "tags_equality", req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("tags", ir.Strings("news", "daily"))),
			QueryMask:     []string{"tags"},
		}},
		{name: "compound_prefix", req: ListRequest{
			QueryTemplate: ir.Obj(ir.O("seed_id", s("seed-1"))),
			QueryMask:     []string{"seed_id"},
		}},
		{name: "ordered_desc_paging", sorted: true, req: ListRequest{
			OrderByPath:     "documents_crawled",
			OrderDescending: true,
			Offset:          1,
			PageSize:        3,
		}},
		{name: "start_time_range", req: ListRequest{
			Ranges: []RangeConstraint{{Path: "start_time", To: testutil.NewClock(0).Timestamp()}},
		}},
	}
}

func build(t *testing.T, reg *index.Registry, req ListRequest) *storeop.Plan {
	t.Helper()
	plan, err := Build(reg, req, WithLogger(quietLogger()))
	require.NoError(t, err)
	return plan
}

func loadTable(t *testing.T, reg *index.Registry) *memstore.Table {
	t.Helper()
	table := memstore.New(reg)
	require.NoError(t, table.PutAll(testutil.Records()))
	return table
}

func ids(records []ir.IRObject) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		id, _ := rec["id"].(ir.IRString)
		out[i] = string(id)
	}
	return out
}

func TestPlanGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	reg := testutil.Registry()
	for _, tt := range requests() {
		t.Run(tt.name, func(t *testing.T) {
			plan := build(t, reg, tt.req)
			g.Assert(t, tt.name, []byte(plan.String()+"\n"))
		})
	}
}

func TestStrippedSortGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	plan := build(t, testutil.Registry().StripSecondary(), ListRequest{OrderByPath: "meta.name"})
	g.Assert(t, "stripped_sort", []byte(plan.String()+"\n"))
}

func TestResultsIndependentOfIndexes(t *testing.T) {
	full := testutil.Registry()
	stripped := full.StripSecondary()
	indexed := loadTable(t, full)
	scanned := loadTable(t, stripped)

	for _, tt := range requests() {
		t.Run(tt.name, func(t *testing.T) {
			got, err := indexed.Execute(build(t, full, tt.req))
			require.NoError(t, err)
			want, err := scanned.Execute(build(t, stripped, tt.req))
			require.NoError(t, err)

			if tt.sorted {
				assert.Equal(t, ids(want), ids(got))
			} else {
				assert.ElementsMatch(t, ids(want), ids(got))
			}
		})
	}
}

func TestStrippedPlansOnlyScan(t *testing.T) {
	stripped := testutil.Registry().StripSecondary()
	for _, tt := range requests() {
		t.Run(tt.name, func(t *testing.T) {
			plan := build(t, stripped, tt.req)
			for _, op := range plan.Ops {
				switch op := op.(type) {
				case storeop.RangeScan:
					t.Errorf("range scan on %s without secondary indexes", op.Index)
				case storeop.GetByKey:
					assert.Equal(t, "id", op.Index)
				case storeop.Sort:
					assert.Empty(t, op.Index)
				}
			}
		})
	}
}

func TestPlannedIndexesExist(t *testing.T) {
	reg := testutil.Registry()
	for _, tt := range requests() {
		plan := build(t, reg, tt.req)
		for _, op := range plan.Ops {
			var name string
			switch op := op.(type) {
			case storeop.GetByKey:
				name = op.Index
			case storeop.RangeScan:
				name = op.Index
			case storeop.Sort:
				name = op.Index
			}
			if name == "" {
				continue
			}
			idx, ok := reg.ByName(name)
			require.True(t, ok, "%s: unknown index %s", tt.name, name)
			if sort, isSort := op.(storeop.Sort); isSort {
				assert.False(t, idx.Multi, "%s: sort on multi index", tt.name)
				assert.Equal(t, sort.Path, idx.Paths[len(idx.Paths)-1])
			}
		}
	}
}

func TestScenarioResults(t *testing.T) {
	s := func(v string) ir.IRValue { return ir.IRString(v) }
	tests := []struct {
		name string
		req  ListRequest
		want []string
	}{
		{"label prefix", ListRequest{LabelSelectors: []string{"team:ab*"}}, []string{"e01", "e02", "e03"}},
		{"state equality", ListRequest{
			QueryTemplate: ir.Obj(ir.O("state", s("CREATED"))), QueryMask: []string{"state"},
		}, []string{"e01", "e03", "e07", "e09"}},
		{"job ordered by state", ListRequest{
			QueryTemplate: ir.Obj(ir.O("job_id", s("job-a"))), QueryMask: []string{"job_id"}, OrderByPath: "state",
		}, []string{"e01", "e09", "e05", "e02"}},
		{"job state range descending", ListRequest{
			QueryTemplate: ir.Obj(ir.O("job_id", s("job-a"))), QueryMask: []string{"job_id"},
			Ranges:      []RangeConstraint{{Path: "state", From: s("CREATED"), To: s("RUNNING")}},
			OrderByPath: "state", OrderDescending: true,
		}, []string{"e05", "e01", "e09"}},
		{"folded name", ListRequest{
			QueryTemplate: ir.Obj(ir.O("meta", ir.Obj(ir.O("name", s("NIGHTLY"))))), QueryMask: []string{"meta.name"},
		}, []string{"e01", "e02", "e06"}},
		{"any key", ListRequest{LabelSelectors: []string{":prod"}}, []string{"e01", "e03", "e05", "e06"}},
		{"labels and range", ListRequest{
			LabelSelectors: []string{"env:prod", "team:"},
			Ranges:         []RangeConstraint{{Path: "documents_crawled", From: ir.IRInt(5)}},
		}, []string{"e01", "e03"}},
		{"tags", ListRequest{
			QueryTemplate: ir.Obj(ir.O("tags", ir.Strings("news"))), QueryMask: []string{"tags"},
		}, []string{"e01", "e02", "e08"}},
		{"ids keep request order", ListRequest{IDs: []string{"e03", "e01", "missing"}}, []string{"e03", "e01"}},
		{"ids with filter", ListRequest{
			IDs: []string{"e03", "e04", "e01"}, QueryTemplate: ir.Obj(ir.O("state", s("CREATED"))), QueryMask: []string{"state"},
		}, []string{"e03", "e01"}},
		{"descending paging", ListRequest{
			OrderByPath: "documents_crawled", OrderDescending: true, Offset: 1, PageSize: 3,
		}, []string{"e01", "e03", "e09"}},
		{"name order paging", ListRequest{OrderByPath: "meta.name", Offset: 1, PageSize: 2}, []string{"e08", "e10"}},
		{"default state", ListRequest{
			QueryTemplate: ir.Obj(), QueryMask: []string{"state"},
		}, []string{"e06", "e10"}},
		{"seed prefix", ListRequest{
			QueryTemplate: ir.Obj(ir.O("seed_id", s("seed-1"))), QueryMask: []string{"seed_id"},
		}, []string{"e01", "e02", "e06", "e09"}},
	}

	full := testutil.Registry()
	table := loadTable(t, full)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Execute(build(t, full, tt.req))
			require.NoError(t, err)
			if tt.req.OrderByPath != "" || len(tt.req.IDs) > 0 {
				assert.Equal(t, tt.want, ids(got))
			} else {
				assert.ElementsMatch(t, tt.want, ids(got))
			}
		})
	}
}

func TestConstraintOrderDoesNotChangeResults(t *testing.T) {
	s := func(v string) ir.IRValue { return ir.IRString(v) }
	selectors := []string{"env:prod", "team:a*", ":prod"}
	ranges := []RangeConstraint{
		{Path: "documents_crawled", From: ir.IRInt(0), To: ir.IRInt(50)},
		{Path: "state", From: s("CREATED")},
		{Path: "meta.name", To: s("x")},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	reg := testutil.Registry()
	table := loadTable(t, reg)
	var first []string
	for _, p := range perms {
		req := ListRequest{OrderByPath: "start_time"}
		for _, i := range p {
			req.LabelSelectors = append(req.LabelSelectors, selectors[i])
			req.Ranges = append(req.Ranges, ranges[i])
		}
		got, err := table.Execute(build(t, reg, req))
		require.NoError(t, err)
		if first == nil {
			first = ids(got)
			continue
		}
		assert.Equal(t, first, ids(got), "permutation %v", p)
	}
	assert.Equal(t, []string{"e01", "e03", "e05"}, first)
}

func TestExplain(t *testing.T) {
	ex, err := Explain(testutil.Registry(), ListRequest{
		QueryTemplate: ir.Obj(ir.O("job_id", ir.IRString("job-a"))),
		QueryMask:     []string{"job_id"},
		OrderByPath:   "state",
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, StrategyCompound, ex.Strategy)
	assert.Contains(t, ex.Chain, "render=CompoundTier1")
	assert.Contains(t, ex.Chain, "render=CompoundTier2")
	assert.NotContains(t, ex.Chain, "unlinked")
}

func TestBuildRejectsBadRequests(t *testing.T) {
	reg := testutil.Registry()
	quiet := WithLogger(quietLogger())

	tests := []struct {
		name    string
		req     ListRequest
		opts    []Option
		isInput bool
		isPath  bool
	}{
		{name: "negative offset", req: ListRequest{Offset: -1}, isInput: true},
		{name: "negative page size", req: ListRequest{PageSize: -1}, isInput: true},
		{name: "bad selector", req: ListRequest{LabelSelectors: []string{"nokey"}}, isInput: true},
		{name: "unknown mask path", req: ListRequest{QueryMask: []string{"nope"}}, isPath: true},
		{name: "unknown order path", req: ListRequest{OrderByPath: "nope"}, isPath: true},
		{name: "unknown returned path", req: ListRequest{ReturnedFieldsMask: []string{"meta.nope"}}, isPath: true},
		{name: "unknown range path", req: ListRequest{Ranges: []RangeConstraint{{Path: "nope"}}}, isPath: true},
		{name: "template without value", req: ListRequest{QueryTemplate: ir.Obj(), QueryMask: []string{"start_time"}}, isInput: true},
		{
			name:   "repeated message template",
			req:    ListRequest{QueryTemplate: ir.Obj(), QueryMask: []string{"meta.label"}},
			opts:   []Option{WithLabelPath("tags")},
			isPath: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(reg, tt.req, append([]Option{quiet}, tt.opts...)...)
			require.Error(t, err)
			assert.Equal(t, tt.isInput, IsInputError(err), "input error: %v", err)
			assert.Equal(t, tt.isPath, schema.IsInvalidPath(err), "path error: %v", err)
			assert.False(t, IsInvariantError(err))
		})
	}
}

func TestTemplateLabelsBecomeExactSelectors(t *testing.T) {
	reg := testutil.Registry()
	plan := build(t, reg, ListRequest{
		QueryTemplate: ir.Obj(ir.O("meta", ir.Obj(ir.O("label", testutil.Labels("env", "prod", "team", "ab"))))),
		QueryMask:     []string{"meta.label"},
	})
	assert.Equal(t, `getByKey(label, ["env","prod"])`, plan.Ops[0].String())
	assert.Equal(t, `filter(any(meta.label, and(eq(key, ["team"], default=""), eq(value, ["ab"], default=""))))`, plan.Ops[1].String())

	got, err := loadTable(t, reg).Execute(plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"e01"}, ids(got))
}
