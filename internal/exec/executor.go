package exec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/plan"
)

// DefaultMaxRows is the default per-operator row quota.
const DefaultMaxRows = 1_000_000

// minParallelRows is the smallest input worth splitting across the pool.
const minParallelRows = 64

// Row is one document flowing through a plan.
type Row struct {
	Doc      eval.Doc
	Bindings *eval.Bindings
}

// context returns the evaluation context for r.
func (r Row) context() eval.Context {
	return eval.NewContext(r.Doc).WithBindings(r.Bindings)
}

// Executor runs plans against a Catalog.
type Executor struct {
	catalog     Catalog
	ev          *eval.Evaluator
	parallelism int
	pool        *ants.Pool
	quota       *RowQuota
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithParallelism sets the number of workers used by row-wise operators.
// Values below 2 run everything on the calling goroutine.
func WithParallelism(n int) ExecutorOption {
	return func(x *Executor) {
		x.parallelism = n
	}
}

// WithMaxRows sets the per-operator row quota. Zero disables it.
func WithMaxRows(n int) ExecutorOption {
	return func(x *Executor) {
		x.quota = NewRowQuota(n)
	}
}

// WithEvaluator sets the evaluator used for every expression.
func WithEvaluator(ev *eval.Evaluator) ExecutorOption {
	return func(x *Executor) {
		x.ev = ev
	}
}

// New creates an Executor over cat. Call Close to release its workers.
func New(cat Catalog, opts ...ExecutorOption) (*Executor, error) {
	x := &Executor{
		catalog:     cat,
		ev:          eval.New(),
		parallelism: 1,
		quota:       NewRowQuota(DefaultMaxRows),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.parallelism > 1 {
		pool, err := ants.NewPool(x.parallelism, ants.WithPanicHandler(func(v any) {
			slog.Error("executor worker panic", "panic", v)
		}))
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		x.pool = pool
		slog.Debug("executor worker pool started", "workers", x.parallelism)
	}
	return x, nil
}

// Close releases the worker pool.
func (x *Executor) Close() error {
	if x.pool == nil {
		return nil
	}
	return x.pool.ReleaseTimeout(3 * time.Second)
}

// Run validates p and evaluates it.
func (x *Executor) Run(ctx context.Context, p plan.Plan) ([]Row, error) {
	if err := plan.Validate(p); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := x.run(ctx, p)
	if err != nil {
		return nil, err
	}
	slog.Debug("plan executed",
		"rows", len(rows),
		"depth", plan.Depth(p),
		"elapsed", time.Since(start),
	)
	return rows, nil
}

// Collect runs p and materializes every output document.
func (x *Executor) Collect(ctx context.Context, p plan.Plan) ([]ir.Result, error) {
	rows, err := x.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Result, len(rows))
	for i, r := range rows {
		out[i] = r.Doc.Result()
	}
	return out, nil
}

// run evaluates p bottom-up.
func (x *Executor) run(ctx context.Context, p plan.Plan) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		out []Row
		err error
	)
	if s, ok := p.(plan.Scan); ok {
		out, err = x.scan(ctx, s, nil)
	} else {
		var in []Row
		if f, ok := p.(plan.Filter); ok {
			if s, ok := f.Source.(plan.Scan); ok {
				in, err = x.scan(ctx, s, f.Predicate)
			} else {
				in, err = x.run(ctx, f.Source)
			}
		} else {
			in, err = x.run(ctx, plan.SourceOf(p))
		}
		if err != nil {
			return nil, err
		}
		out, err = x.apply(ctx, p, in)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", plan.Label(p), err)
	}
	if err := x.quota.Check(plan.Label(p), len(out)); err != nil {
		return nil, err
	}
	slog.Debug("operator finished", "op", plan.Label(p), "rows", len(out))
	return out, nil
}

// apply evaluates one non-source operator over its input rows.
func (x *Executor) apply(ctx context.Context, p plan.Plan, in []Row) ([]Row, error) {
	switch n := p.(type) {
	case plan.Filter:
		return x.filter(ctx, n, in)
	case plan.Head:
		return in[:min(n.N, len(in))], nil
	case plan.Tail:
		return in[len(in)-min(n.N, len(in)):], nil
	case plan.Take:
		return take(in, n.Indices), nil
	case plan.Sample:
		return sample(in, n.N, n.Seed), nil
	case plan.Shuffle:
		return shuffle(in, n.Seed), nil
	case plan.Sort:
		return x.sort(in, n.Keys, len(in))
	case plan.TopK:
		return x.sort(in, n.Keys, n.K)
	case plan.Select:
		return x.mapRows(ctx, in, func(r Row) (Row, bool, error) {
			return x.selectRow(r, n.Fields)
		})
	case plan.AddFields:
		return x.mapRows(ctx, in, func(r Row) (Row, bool, error) {
			return x.addFields(r, n.Fields)
		})
	case plan.Explode:
		return x.explode(in, n)
	case plan.GroupBy:
		return x.groupBy(in, n)
	case plan.IndexBy:
		return x.indexBy(in, n)
	case plan.UniqueBy:
		return x.uniqueBy(in, n)
	case plan.Aggregate:
		return x.aggregate(in, n)
	case plan.Append, plan.Insert, plan.Set, plan.Remove:
		return x.mutate(in, n)
	}
	return nil, fmt.Errorf("unsupported plan node %T", p)
}

// scan loads a collection, passing hint to the catalog.
func (x *Executor) scan(ctx context.Context, s plan.Scan, hint expr.Expr) ([]Row, error) {
	coll, err := x.catalog.Collection(ctx, s.Collection, hint)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, coll.Len())
	for i := range rows {
		rows[i] = Row{Doc: eval.FromTree(coll.Tree(i))}
	}
	return rows, nil
}
