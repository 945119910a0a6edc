package exec

import (
	"context"
	"fmt"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/tree"
)

// Catalog resolves collection names for Scan.
//
// hint is the predicate of a Filter reading directly from the scan, or
// nil. Implementations may return a subset of the collection that still
// contains every tree for which hint could be true.
type Catalog interface {
	Collection(ctx context.Context, name string, hint expr.Expr) (tree.Collection, error)
}

// MapCatalog is an in-memory Catalog. It ignores hints.
type MapCatalog map[string]tree.Collection

// Collection implements Catalog.
func (m MapCatalog) Collection(_ context.Context, name string, _ expr.Expr) (tree.Collection, error) {
	c, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return c, nil
}
