package harness

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/config"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/top_open_orders.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ReportsFailures(t *testing.T) {
	base := `
name: failing
description: "checks that do not hold"
data:
  docs: |
    {"n": 2}
    {"n": 1}
query:
  from: docs
`
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "rows mismatch",
			extra: "expect:\n  rows: '[{\"n\": 1}, {\"n\": 2}]'\n",
			want:  "rows mismatch",
		},
		{
			name:  "expected error did not happen",
			extra: "expect:\n  error: TYPE_MISMATCH\n",
			want:  "expected TYPE_MISMATCH error",
		},
		{
			name:  "row count",
			extra: "assertions:\n  - type: row_count\n    count: 3\n",
			want:  "3 rows",
		},
		{
			name:  "ordering",
			extra: "assertions:\n  - type: ordered_by\n    key: n\n",
			want:  "ascending",
		},
		{
			name:  "contains",
			extra: "assertions:\n  - type: contains\n    row: '{\"n\": 7}'\n",
			want:  "not found",
		},
		{
			name:  "rule",
			extra: "assertions:\n  - type: rule_fired\n    rule: TopKFusion\n",
			want:  "TopKFusion",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScenario([]byte(base + tt.extra))
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestRun_UnexpectedQueryError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken
description: "a query error without expect.error fails"
data:
  docs: |
    {"n": "x"}
query:
  from: docs
  pipeline:
    - filter: n > 1
assertions:
  - type: row_count
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Nil(t, result.Rows)
	assert.NotEmpty(t, result.QueryError)
}

func TestRun_WithoutOptimizer(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/top_open_orders.yaml")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Optimizer.Disabled = true
	result, err := New(cfg).Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, result.Plan, result.Optimized)
	assert.Empty(t, result.Trace)
	// rule_fired cannot hold without the optimizer
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 1)
}

func TestRun_CompileError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_query
description: "unparseable filter"
query:
  from: docs
  pipeline:
    - filter: "a +"
assertions:
  - type: row_count
    count: 0
`))
	require.NoError(t, err)

	_, err = Run(s)
	assert.ErrorContains(t, err, "compile query")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "name: x\ndescription: d\nquery: {from: c}\nassertion: []\n"},
		{"missing name", "description: d\nquery: {from: c}\nexpect: {rows: '[]'}\n"},
		{"missing description", "name: x\nquery: {from: c}\nexpect: {rows: '[]'}\n"},
		{"missing from", "name: x\ndescription: d\nexpect: {rows: '[]'}\n"},
		{"nothing to check", "name: x\ndescription: d\nquery: {from: c}\n"},
		{"rows and error", "name: x\ndescription: d\nquery: {from: c}\nexpect: {rows: '[]', error: TYPE_MISMATCH}\n"},
		{"unknown error kind", "name: x\ndescription: d\nquery: {from: c}\nexpect: {error: OOPS}\n"},
		{"unknown source", "name: x\ndescription: d\nsource: pg\nquery: {from: c}\nexpect: {rows: '[]'}\n"},
		{"unknown assertion", "name: x\ndescription: d\nquery: {from: c}\nassertions: [{type: magic}]\n"},
		{"assertion without key", "name: x\ndescription: d\nquery: {from: c}\nassertions: [{type: ordered_by}]\n"},
		{
			"inline and file data",
			"name: x\ndescription: d\ndata: {c: ''}\ndata_files: {c: c.jsonl}\nquery: {from: c}\nexpect: {rows: '[]'}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_MissingDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: x\ndescription: d\ndata_files: {c: nope.jsonl}\nquery: {from: c}\nexpect: {rows: '[]'}\n"), 0o644))

	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "nope.jsonl")
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	doc := []byte("name: same\ndescription: d\nquery: {from: c}\nexpect: {rows: '[]'}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), doc, 0o644))

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, `scenario "same"`)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files")
}
