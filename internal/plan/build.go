package plan

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/option"
)

// Builder chains operators on top of a plan:
//
//	p := plan.From("orders").
//		Filter(expr.Gt(expr.P("price"), expr.Int(10))).
//		Sort(plan.Desc(expr.P("price"))).
//		Head(5).
//		Plan()
type Builder struct {
	p Plan
}

// From starts a plan with a scan of collection.
func From(collection string) Builder { return Builder{p: Scan{Collection: collection}} }

// On continues building on top of an existing plan.
func On(p Plan) Builder { return Builder{p: p} }

// Plan returns the built plan.
func (b Builder) Plan() Plan { return b.p }

func (b Builder) Filter(pred expr.Expr) Builder {
	return Builder{p: Filter{Source: b.p, Predicate: pred}}
}

// FilterLimit keeps at most n matching rows.
func (b Builder) FilterLimit(pred expr.Expr, n int) Builder {
	return Builder{p: Filter{Source: b.p, Predicate: pred, Limit: option.Some(n)}}
}

func (b Builder) Head(n int) Builder { return Builder{p: Head{Source: b.p, N: n}} }

func (b Builder) Tail(n int) Builder { return Builder{p: Tail{Source: b.p, N: n}} }

func (b Builder) Take(indices ...int) Builder {
	return Builder{p: Take{Source: b.p, Indices: indices}}
}

func (b Builder) Sample(n int, seed uint64) Builder {
	return Builder{p: Sample{Source: b.p, N: n, Seed: seed}}
}

func (b Builder) Shuffle(seed uint64) Builder { return Builder{p: Shuffle{Source: b.p, Seed: seed}} }

func (b Builder) Sort(keys ...SortKey) Builder { return Builder{p: Sort{Source: b.p, Keys: keys}} }

func (b Builder) TopK(k int, keys ...SortKey) Builder {
	return Builder{p: TopK{Source: b.p, Keys: keys, K: k}}
}

func (b Builder) Select(fields ...NamedExpr) Builder {
	return Builder{p: Select{Source: b.p, Fields: fields}}
}

func (b Builder) AddFields(fields ...NamedExpr) Builder {
	return Builder{p: AddFields{Source: b.p, Fields: fields}}
}

func (b Builder) Explode(e expr.Expr, binding string) Builder {
	return Builder{p: Explode{Source: b.p, Expr: e, Binding: binding}}
}

func (b Builder) GroupBy(keys []NamedExpr, aggs ...AggSpec) Builder {
	return Builder{p: GroupBy{Source: b.p, Keys: keys, Aggs: aggs}}
}

func (b Builder) IndexBy(key expr.Expr) Builder { return Builder{p: IndexBy{Source: b.p, Key: key}} }

func (b Builder) UniqueBy(key expr.Expr) Builder { return Builder{p: UniqueBy{Source: b.p, Key: key}} }

func (b Builder) Aggregate(aggs ...AggSpec) Builder {
	return Builder{p: Aggregate{Source: b.p, Aggs: aggs}}
}

func (b Builder) Append(path string, values ...expr.Expr) Builder {
	return Builder{p: Append{Source: b.p, Path: expr.MustParsePath(path), Values: values}}
}

func (b Builder) Insert(path string, index int, value expr.Expr) Builder {
	return Builder{p: Insert{Source: b.p, Path: expr.MustParsePath(path), Index: index, Value: value}}
}

func (b Builder) Set(path string, value expr.Expr) Builder {
	return Builder{p: Set{Source: b.p, Path: expr.MustParsePath(path), Value: value}}
}

func (b Builder) Remove(path string) Builder {
	return Builder{p: Remove{Source: b.p, Path: expr.MustParsePath(path)}}
}

// Asc is an ascending sort key.
func Asc(e expr.Expr) SortKey { return SortKey{Expr: e} }

// Desc is a descending sort key.
func Desc(e expr.Expr) SortKey { return SortKey{Expr: e, Desc: true} }

// As names an expression.
func As(name string, e expr.Expr) NamedExpr { return NamedExpr{Name: name, Expr: e} }

// Agg builds an aggregate field. arg may be nil.
func Agg(name string, fn expr.Func, arg expr.Expr) AggSpec {
	return AggSpec{Name: name, Fn: fn, Arg: arg}
}
