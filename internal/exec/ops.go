package exec

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/qerror"
)

// eval evaluates e against r.
func (x *Executor) eval(e expr.Expr, r Row) (ir.Result, error) {
	return x.ev.Eval(e, r.context())
}

// keeps evaluates a filter predicate. Null drops the row; anything other
// than a boolean is a TYPE_MISMATCH.
func (x *Executor) keeps(pred expr.Expr, r Row) (bool, error) {
	v, err := x.eval(pred, r)
	if err != nil {
		return false, err
	}
	if ir.IsNull(v) {
		return false, nil
	}
	b, ok := ir.AsBool(v)
	if !ok {
		return false, qerror.TypeMismatch("filter predicate must be boolean, got %s", ir.TypeName(v)).
			WithPath(pred.String())
	}
	return b, nil
}

func (x *Executor) filter(ctx context.Context, f plan.Filter, in []Row) ([]Row, error) {
	limit, limited := f.Limit.Get()
	if !limited {
		return x.mapRows(ctx, in, func(r Row) (Row, bool, error) {
			ok, err := x.keeps(f.Predicate, r)
			return r, ok, err
		})
	}
	out := make([]Row, 0, min(limit, len(in)))
	for _, r := range in {
		if len(out) >= limit {
			break
		}
		ok, err := x.keeps(f.Predicate, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// take picks rows by position. Negative indices count from the end and
// out-of-range indices are skipped.
func take(in []Row, indices []int) []Row {
	out := make([]Row, 0, len(indices))
	for _, i := range indices {
		if i < 0 {
			i += len(in)
		}
		if i >= 0 && i < len(in) {
			out = append(out, in[i])
		}
	}
	return out
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// sample picks n distinct rows, keeping their input order.
func sample(in []Row, n int, seed uint64) []Row {
	if n >= len(in) {
		return in
	}
	picked := seeded(seed).Perm(len(in))[:n]
	slices.Sort(picked)
	out := make([]Row, n)
	for i, idx := range picked {
		out[i] = in[idx]
	}
	return out
}

func shuffle(in []Row, seed uint64) []Row {
	out := slices.Clone(in)
	seeded(seed).Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// sort orders rows stably by keys and keeps the first k.
func (x *Executor) sort(in []Row, keys []plan.SortKey, k int) ([]Row, error) {
	type keyed struct {
		row  Row
		keys []ir.Result
	}
	items := make([]keyed, len(in))
	for i, r := range in {
		items[i] = keyed{row: r, keys: make([]ir.Result, len(keys))}
		for j, key := range keys {
			v, err := x.eval(key.Expr, r)
			if err != nil {
				return nil, err
			}
			items[i].keys[j] = v
		}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		for j, key := range keys {
			c := ir.TotalCompare(a.keys[j], b.keys[j])
			if key.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	out := make([]Row, min(k, len(items)))
	for i := range out {
		out[i] = items[i].row
	}
	return out, nil
}

func (x *Executor) selectRow(r Row, fields []plan.NamedExpr) (Row, bool, error) {
	out := make([]ir.Field, len(fields))
	for i, f := range fields {
		v, err := x.eval(f.Expr, r)
		if err != nil {
			return Row{}, false, err
		}
		out[i] = ir.F(f.Name, orNull(v))
	}
	return Row{Doc: eval.FromResult(ir.NewObject(out...)), Bindings: r.Bindings}, true, nil
}

// addFields evaluates every field against the input document, then sets
// them in order.
func (x *Executor) addFields(r Row, fields []plan.NamedExpr) (Row, bool, error) {
	obj, ok := r.Doc.Result().(ir.Object)
	if !ok {
		return Row{}, false, qerror.TypeMismatch("cannot add fields to %s", ir.TypeName(r.Doc.Result()))
	}
	values := make([]ir.Result, len(fields))
	for i, f := range fields {
		v, err := x.eval(f.Expr, r)
		if err != nil {
			return Row{}, false, err
		}
		values[i] = orNull(v)
	}
	for i, f := range fields {
		obj = obj.With(f.Name, values[i])
	}
	return Row{Doc: eval.FromResult(obj), Bindings: r.Bindings}, true, nil
}

// explode emits one row per element of the exploded array, bound under
// the binding name. Empty arrays drop the row; any other value passes
// through as a single row bound to that value.
func (x *Executor) explode(in []Row, e plan.Explode) ([]Row, error) {
	out := make([]Row, 0, len(in))
	for _, r := range in {
		v, err := x.eval(e.Expr, r)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(ir.Array)
		if !ok {
			out = append(out, Row{Doc: r.Doc, Bindings: r.Bindings.With(e.Binding, orNull(v))})
			continue
		}
		for _, item := range arr {
			out = append(out, Row{Doc: r.Doc, Bindings: r.Bindings.With(e.Binding, item)})
		}
	}
	return out, nil
}

// aggregateRows computes each aggregate over rows.
func (x *Executor) aggregateRows(rows []Row, aggs []plan.AggSpec) ([]ir.Field, error) {
	out := make([]ir.Field, len(aggs))
	for i, a := range aggs {
		items := make([]ir.Result, 0, len(rows))
		for _, r := range rows {
			if a.Arg == nil {
				items = append(items, r.Doc.Result())
				continue
			}
			v, err := x.eval(a.Arg, r)
			if err != nil {
				return nil, err
			}
			if arr, ok := v.(ir.Array); ok && expr.IsVector(a.Arg) {
				items = append(items, arr...)
				continue
			}
			items = append(items, v)
		}
		v, err := eval.Aggregate(a.Fn, items)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", a.Name, err)
		}
		out[i] = ir.F(a.Name, v)
	}
	return out, nil
}

// groupBy emits one row per distinct key tuple in first-seen order.
func (x *Executor) groupBy(in []Row, g plan.GroupBy) ([]Row, error) {
	type group struct {
		keys []ir.Field
		rows []Row
	}
	var order []*group
	groups := map[string]*group{}
	for _, r := range in {
		keys := make([]ir.Field, len(g.Keys))
		tuple := make(ir.Array, len(g.Keys))
		for i, k := range g.Keys {
			v, err := x.eval(k.Expr, r)
			if err != nil {
				return nil, err
			}
			keys[i] = ir.F(k.Name, orNull(v))
			tuple[i] = orNull(v)
		}
		id := string(ir.CanonicalKey(tuple))
		grp, ok := groups[id]
		if !ok {
			grp = &group{keys: keys}
			groups[id] = grp
			order = append(order, grp)
		}
		grp.rows = append(grp.rows, r)
	}

	out := make([]Row, 0, len(order))
	for _, grp := range order {
		aggs, err := x.aggregateRows(grp.rows, g.Aggs)
		if err != nil {
			return nil, err
		}
		fields := append(slices.Clone(grp.keys), aggs...)
		out = append(out, Row{Doc: eval.FromResult(ir.NewObject(fields...))})
	}
	return out, nil
}

// indexBy folds every row into one object keyed by the stringified key.
// Later rows replace earlier ones with the same key.
func (x *Executor) indexBy(in []Row, n plan.IndexBy) ([]Row, error) {
	obj := ir.NewObject()
	for _, r := range in {
		v, err := x.eval(n.Key, r)
		if err != nil {
			return nil, err
		}
		obj = obj.With(eval.KeyString(v), r.Doc.Result())
	}
	return []Row{{Doc: eval.FromResult(obj)}}, nil
}

// uniqueBy keeps the first row for each key.
func (x *Executor) uniqueBy(in []Row, n plan.UniqueBy) ([]Row, error) {
	seen := map[string]bool{}
	out := make([]Row, 0, len(in))
	for _, r := range in {
		v, err := x.eval(n.Key, r)
		if err != nil {
			return nil, err
		}
		id := string(ir.CanonicalKey(orNull(v)))
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out, nil
}

func (x *Executor) aggregate(in []Row, n plan.Aggregate) ([]Row, error) {
	fields, err := x.aggregateRows(in, n.Aggs)
	if err != nil {
		return nil, err
	}
	return []Row{{Doc: eval.FromResult(ir.NewObject(fields...))}}, nil
}

// orNull replaces Missing with null so emitted documents hold only
// JSON values.
func orNull(v ir.Result) ir.Result {
	if v == nil {
		return ir.NewScalar(ir.Null{})
	}
	if _, missing := v.(ir.Missing); missing {
		return ir.NewScalar(ir.Null{})
	}
	return v
}
