package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/tree"
)

// createTestStore opens a fresh store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadJSONL loads jsonl into collection with default options.
func loadJSONL(t *testing.T, s *Store, collection, jsonl string) LoadStats {
	t.Helper()
	stats, err := s.Load(context.Background(), collection, strings.NewReader(jsonl), LoadOptions{})
	require.NoError(t, err)
	return stats
}

// collectionJSON renders a collection as a JSON array.
func collectionJSON(t *testing.T, c tree.Collection) string {
	t.Helper()
	items := make([]ir.Result, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		doc := c.Tree(i)
		items = append(items, tree.Materialize(doc, doc.Root()))
	}
	b, err := ir.MarshalResult(ir.NewArray(items...))
	require.NoError(t, err)
	return string(b)
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
