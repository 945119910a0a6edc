package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersJSONL = `{"id": 1, "total": 10}
{"id": 2, "total": 30}
{"id": 3, "total": 20}
`

const topQuery = `
from: orders
pipeline:
  - sort: [{key: total, desc: true}]
  - head: 2
`

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_Data(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "top.yaml", topQuery)
	data := writeFile(t, dir, "orders.jsonl", ordersJSONL)

	out, err := executeRoot(t, "run", query, "--data", "orders="+data)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":2,\"total\":30}\n{\"id\":3,\"total\":20}\n", out)
}

func TestRun_JSONArrayFile(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "top.yaml", topQuery)
	data := writeFile(t, dir, "orders.json", `[{"id": 1, "total": 5}, {"id": 2, "total": 7}]`)

	out, err := executeRoot(t, "run", query, "--data", "orders="+data, "--no-optimize")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":2,\"total\":7}\n{\"id\":1,\"total\":5}\n", out)
}

func TestRun_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "top.yaml", topQuery)
	data := writeFile(t, dir, "orders.jsonl", ordersJSONL)

	out, err := executeRoot(t, "--format", "json", "run", query, "--data", "orders="+data)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Query string            `json:"query"`
			Rows  []json.RawMessage `json:"rows"`
			Count int               `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "top", resp.Data.Query)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Rows, 2)
	assert.JSONEq(t, `{"id":2,"total":30}`, string(resp.Data.Rows[0]))
}

func TestRun_Store(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "top.yaml", topQuery)
	data := writeFile(t, dir, "orders.jsonl", ordersJSONL)
	db := filepath.Join(dir, "treeq.db")

	_, err := executeRoot(t, "load", db, "orders", data)
	require.NoError(t, err)

	out, err := executeRoot(t, "run", query, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":2,\"total\":30}\n{\"id\":3,\"total\":20}\n", out)
}

func TestRun_QueryError(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "bad.yaml", "from: orders\npipeline:\n  - filter: 'total > \"x\"'\n")
	data := writeFile(t, dir, "orders.jsonl", ordersJSONL)

	out, err := executeRoot(t, "--format", "json", "run", query, "--data", "orders="+data)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeQueryFailed, resp.Error.Code)
	assert.Equal(t, "TYPE_MISMATCH", resp.Error.Kind)
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "top.yaml", topQuery)
	data := writeFile(t, dir, "orders.jsonl", ordersJSONL)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no data source", []string{"run", query}, "data"},
		{"both data sources", []string{"run", query, "--data", "orders=" + data, "--db", "x.db"}, "db"},
		{"malformed data flag", []string{"run", query, "--data", data}, "want name=path"},
		{"duplicate collection", []string{"run", query, "--data", "orders=" + data, "--data", "orders=" + data}, "given twice"},
		{"missing store", []string{"run", query, "--db", filepath.Join(dir, "nope.db")}, "store not found"},
		{"missing query file", []string{"run", filepath.Join(dir, "nope.yaml"), "--data", "orders=" + data}, "failed to compile query"},
		{"unknown collection", []string{"run", query, "--data", "other=" + data}, `unknown collection "orders"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
