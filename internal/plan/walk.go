package plan

import (
	"fmt"
	"slices"

	"github.com/roach88/treeq/internal/expr"
)

// SourceOf returns the input of p, or nil for Scan.
func SourceOf(p Plan) Plan {
	switch p := p.(type) {
	case Scan:
		return nil
	case Filter:
		return p.Source
	case Head:
		return p.Source
	case Tail:
		return p.Source
	case Take:
		return p.Source
	case Sample:
		return p.Source
	case Shuffle:
		return p.Source
	case Sort:
		return p.Source
	case TopK:
		return p.Source
	case Select:
		return p.Source
	case AddFields:
		return p.Source
	case Explode:
		return p.Source
	case GroupBy:
		return p.Source
	case IndexBy:
		return p.Source
	case UniqueBy:
		return p.Source
	case Aggregate:
		return p.Source
	case Append:
		return p.Source
	case Insert:
		return p.Source
	case Set:
		return p.Source
	case Remove:
		return p.Source
	}
	panic(fmt.Sprintf("plan: unknown node %T", p))
}

// WithSource returns a copy of p reading from src. Scan is returned as is.
func WithSource(p Plan, src Plan) Plan {
	switch p := p.(type) {
	case Scan:
		return p
	case Filter:
		p.Source = src
		return p
	case Head:
		p.Source = src
		return p
	case Tail:
		p.Source = src
		return p
	case Take:
		p.Source = src
		return p
	case Sample:
		p.Source = src
		return p
	case Shuffle:
		p.Source = src
		return p
	case Sort:
		p.Source = src
		return p
	case TopK:
		p.Source = src
		return p
	case Select:
		p.Source = src
		return p
	case AddFields:
		p.Source = src
		return p
	case Explode:
		p.Source = src
		return p
	case GroupBy:
		p.Source = src
		return p
	case IndexBy:
		p.Source = src
		return p
	case UniqueBy:
		p.Source = src
		return p
	case Aggregate:
		p.Source = src
		return p
	case Append:
		p.Source = src
		return p
	case Insert:
		p.Source = src
		return p
	case Set:
		p.Source = src
		return p
	case Remove:
		p.Source = src
		return p
	}
	panic(fmt.Sprintf("plan: unknown node %T", p))
}

// Exprs returns the expressions p evaluates itself, excluding its source.
func Exprs(p Plan) []expr.Expr {
	switch p := p.(type) {
	case Filter:
		return []expr.Expr{p.Predicate}
	case Sort:
		return sortExprs(p.Keys)
	case TopK:
		return sortExprs(p.Keys)
	case Select:
		return namedExprs(p.Fields)
	case AddFields:
		return namedExprs(p.Fields)
	case Explode:
		return []expr.Expr{p.Expr}
	case GroupBy:
		return append(namedExprs(p.Keys), aggExprs(p.Aggs)...)
	case IndexBy:
		return []expr.Expr{p.Key}
	case UniqueBy:
		return []expr.Expr{p.Key}
	case Aggregate:
		return aggExprs(p.Aggs)
	case Append:
		return slices.Clone(p.Values)
	case Insert:
		return []expr.Expr{p.Value}
	case Set:
		return []expr.Expr{p.Value}
	}
	return nil
}

func sortExprs(keys []SortKey) []expr.Expr {
	out := make([]expr.Expr, len(keys))
	for i, k := range keys {
		out[i] = k.Expr
	}
	return out
}

func namedExprs(fields []NamedExpr) []expr.Expr {
	out := make([]expr.Expr, len(fields))
	for i, f := range fields {
		out[i] = f.Expr
	}
	return out
}

func aggExprs(aggs []AggSpec) []expr.Expr {
	var out []expr.Expr
	for _, a := range aggs {
		if a.Arg != nil {
			out = append(out, a.Arg)
		}
	}
	return out
}

// Walk visits p and its sources top-down until fn returns false.
func Walk(p Plan, fn func(Plan) bool) {
	for p != nil {
		if !fn(p) {
			return
		}
		p = SourceOf(p)
	}
}

// Transform rebuilds p bottom-up, replacing each node with fn's result.
// Unchanged subtrees are shared with p.
func Transform(p Plan, fn func(Plan) Plan) Plan {
	if src := SourceOf(p); src != nil {
		p = WithSource(p, Transform(src, fn))
	}
	return fn(p)
}

// Equal reports whether two plans are structurally identical.
func Equal(a, b Plan) bool {
	return Explain(a) == Explain(b)
}

// Depth returns the number of operators in p.
func Depth(p Plan) int {
	n := 0
	Walk(p, func(Plan) bool { n++; return true })
	return n
}

// Scope returns the variables bound on the rows p emits, innermost first.
func Scope(p Plan) []string {
	var names []string
	Walk(p, func(n Plan) bool {
		switch n := n.(type) {
		case Explode:
			if !slices.Contains(names, n.Binding) {
				names = append(names, n.Binding)
			}
		case GroupBy, IndexBy, Aggregate:
			return false
		}
		return true
	})
	return names
}

// MapExprs returns a copy of p with fn applied to each expression p
// evaluates itself. Its source is shared, not visited.
func MapExprs(p Plan, fn func(expr.Expr) expr.Expr) Plan {
	mapKeys := func(keys []SortKey) []SortKey {
		out := make([]SortKey, len(keys))
		for i, k := range keys {
			out[i] = SortKey{Expr: fn(k.Expr), Desc: k.Desc}
		}
		return out
	}
	mapFields := func(fields []NamedExpr) []NamedExpr {
		out := make([]NamedExpr, len(fields))
		for i, f := range fields {
			out[i] = NamedExpr{Name: f.Name, Expr: fn(f.Expr)}
		}
		return out
	}
	mapAggs := func(aggs []AggSpec) []AggSpec {
		out := make([]AggSpec, len(aggs))
		for i, a := range aggs {
			out[i] = a
			if a.Arg != nil {
				out[i].Arg = fn(a.Arg)
			}
		}
		return out
	}

	switch p := p.(type) {
	case Filter:
		p.Predicate = fn(p.Predicate)
		return p
	case Sort:
		p.Keys = mapKeys(p.Keys)
		return p
	case TopK:
		p.Keys = mapKeys(p.Keys)
		return p
	case Select:
		p.Fields = mapFields(p.Fields)
		return p
	case AddFields:
		p.Fields = mapFields(p.Fields)
		return p
	case Explode:
		p.Expr = fn(p.Expr)
		return p
	case GroupBy:
		p.Keys = mapFields(p.Keys)
		p.Aggs = mapAggs(p.Aggs)
		return p
	case IndexBy:
		p.Key = fn(p.Key)
		return p
	case UniqueBy:
		p.Key = fn(p.Key)
		return p
	case Aggregate:
		p.Aggs = mapAggs(p.Aggs)
		return p
	case Append:
		values := make([]expr.Expr, len(p.Values))
		for i, v := range p.Values {
			values[i] = fn(v)
		}
		p.Values = values
		return p
	case Insert:
		p.Value = fn(p.Value)
		return p
	case Set:
		p.Value = fn(p.Value)
		return p
	}
	return p
}
