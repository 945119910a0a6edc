package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/querysql"
	"github.com/roach88/treeq/internal/tree"
)

// CollectionInfo describes one stored collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
	HasSchema bool   `json:"has_schema"`
}

// Collection returns the documents of name in load order. hint, when
// non-nil, is compiled into a SQL prefilter; the result still contains
// every document hint could keep or fail on.
func (s *Store) Collection(ctx context.Context, name string, hint expr.Expr) (tree.Collection, error) {
	ok, err := s.exists(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}

	query, params := querysql.NewSQLCompiler().Compile(name, hint)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := tree.Slice{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := tree.ParseJSON([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	slog.Debug("collection scanned",
		"collection", name,
		"documents", len(out),
		"prefiltered", hint != nil,
	)
	return out, nil
}

// Collections lists every collection by name.
func (s *Store) Collections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.json_schema != '', COUNT(d.id)
		FROM collections c
		LEFT JOIN documents d ON d.collection = c.name
		GROUP BY c.name
		ORDER BY c.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	infos := []CollectionInfo{}
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.HasSchema, &info.Documents); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return infos, nil
}

// Drop deletes a collection and its documents. Dropping an unknown
// collection is not an error.
func (s *Store) Drop(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}
