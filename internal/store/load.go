package store

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/tree"
)

// maxLineSize bounds a single JSONL document.
const maxLineSize = 64 * 1024 * 1024

// LoadOptions controls Load.
type LoadOptions struct {
	// Schema, when set, replaces the collection's JSON Schema before
	// loading. Every document must validate against the collection's
	// schema, new or existing.
	Schema []byte

	// Replace deletes the collection's documents before loading.
	Replace bool

	// Dedupe skips documents equal to one already in the collection.
	Dedupe bool
}

// LoadStats reports what Load did.
type LoadStats struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Load appends the JSONL documents in r to collection, creating it if
// needed. The load is all-or-nothing: a parse error or any schema
// violation rolls it back, and every violation is reported.
func (s *Store) Load(ctx context.Context, collection string, r io.Reader, opts LoadOptions) (LoadStats, error) {
	var stats LoadStats
	if collection == "" {
		return stats, fmt.Errorf("load: empty collection name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("load: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, collection); err != nil {
		return stats, fmt.Errorf("load: create collection: %w", err)
	}
	if opts.Schema != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET json_schema = ? WHERE name = ?`,
			string(opts.Schema), collection); err != nil {
			return stats, fmt.Errorf("load: set schema: %w", err)
		}
	}
	if opts.Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
			return stats, fmt.Errorf("load: clear collection: %w", err)
		}
	}

	schema, err := collectionSchema(ctx, tx, collection)
	if err != nil {
		return stats, err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM documents WHERE collection = ?`, collection).Scan(&seq); err != nil {
		return stats, fmt.Errorf("load: read seq: %w", err)
	}

	var invalid *multierror.Error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		doc, err := tree.ParseJSON(text)
		if err != nil {
			return LoadStats{}, fmt.Errorf("load: line %d: %w", line, err)
		}
		if schema != nil {
			if err := validate(schema, text); err != nil {
				invalid = multierror.Append(invalid, fmt.Errorf("line %d: %w", line, err))
				continue
			}
		}

		result := doc.Result()
		hash := ir.ResultHash(result)
		if opts.Dedupe {
			dup, err := hasHash(ctx, tx, collection, hash)
			if err != nil {
				return LoadStats{}, err
			}
			if dup {
				stats.Skipped++
				continue
			}
		}

		data, err := ir.MarshalResult(result)
		if err != nil {
			return LoadStats{}, fmt.Errorf("load: line %d: %w", line, err)
		}
		seq++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, collection, seq, doc, content_hash)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.Must(uuid.NewV7()).String(), collection, seq, string(data), hash); err != nil {
			return LoadStats{}, fmt.Errorf("load: line %d: insert: %w", line, err)
		}
		stats.Inserted++
	}
	if err := scanner.Err(); err != nil {
		return LoadStats{}, fmt.Errorf("load: read JSONL: %w", err)
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return LoadStats{}, fmt.Errorf("load: documents violate the schema of %q: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("load: commit: %w", err)
	}
	slog.Info("collection loaded",
		"collection", collection,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// collectionSchema compiles the collection's JSON Schema, or returns nil
// when it has none.
func collectionSchema(ctx context.Context, q querier, collection string) (*gojsonschema.Schema, error) {
	var text string
	if err := q.QueryRowContext(ctx, `SELECT json_schema FROM collections WHERE name = ?`, collection).Scan(&text); err != nil {
		return nil, fmt.Errorf("load: read schema: %w", err)
	}
	if text == "" {
		return nil, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}
	return schema, nil
}

// validate checks one document against schema.
func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs *multierror.Error
	for _, desc := range result.Errors() {
		errs = multierror.Append(errs, fmt.Errorf("%s", desc.String()))
	}
	return errs.ErrorOrNil()
}

func hasHash(ctx context.Context, tx *sql.Tx, collection, hash string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE collection = ? AND content_hash = ?
	`, collection, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("load: dedupe lookup: %w", err)
	}
	return n > 0, nil
}
