package optimizer

import (
	"slices"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/option"
	"github.com/roach88/treeq/internal/plan"
)

// Rule is a single rewrite. Apply inspects one node and returns its
// replacement, or None when the rule does not match.
type Rule struct {
	Name  string
	Law   string
	Apply func(plan.Plan) option.Option[plan.Plan]
}

// Rules returns the standard rule set in priority order. ev folds
// constant expressions.
func Rules(ev *eval.Evaluator) []Rule {
	return []Rule{
		{
			Name:  "ConstantFold",
			Law:   "e ≡ lit(eval(e)) WHEN e reads no document or binding and evaluates without error",
			Apply: constantFold(ev),
		},
		{
			Name:  "FilterTrue",
			Law:   "Filter(true, S) ≡ S; Filter(true, S, limit=n) ≡ Head(n, S)",
			Apply: filterTrue,
		},
		{
			Name:  "FilterFusion",
			Law:   "Filter(p1, Filter(p2, S)) ≡ Filter(coalesce(p2, false) and p1, S) WHEN neither filter carries a limit",
			Apply: filterFusion,
		},
		{
			Name:  "HeadHead",
			Law:   "Head(a, Head(b, S)) ≡ Head(min(a, b), S); Tail(a, Tail(b, S)) ≡ Tail(min(a, b), S)",
			Apply: headHead,
		},
		{
			Name:  "TopKFusion",
			Law:   "Head(k, Sort(keys, S)) ≡ TopK(keys, k, S); Head(k, TopK(keys, j, S)) ≡ TopK(keys, min(k, j), S)",
			Apply: topKFusion,
		},
		{
			Name:  "LimitPushdown",
			Law:   "Head(n, Filter(p, S)) ≡ Filter(p, S, limit=n) WHEN S carries no ordering operator; Head(n, Filter(p, S, limit=m)) ≡ Filter(p, S, limit=min(n, m))",
			Apply: limitPushdown,
		},
		{
			Name:  "SortFusion",
			Law:   "Sort(k1, Sort(k2, S)) ≡ Sort(k1 ++ k2, S)",
			Apply: sortFusion,
		},
		{
			Name:  "FilterBeforeSort",
			Law:   "Filter(p, Sort(k, S)) ≡ Sort(k, Filter(p, S)) WHEN the filter carries no limit",
			Apply: filterBeforeSort,
		},
		{
			Name:  "ExplodePushdown",
			Law:   "Filter(p, Explode(S, e, x)) ≡ Explode(Filter(p, S), e, x) WHEN x ∉ free_vars(p) and no limit; p is guarded to rows Explode keeps unless it cannot fail",
			Apply: explodePushdown,
		},
		{
			Name:  "AddFieldsPushdown",
			Law:   "Filter(p, AddFields(S, f)) ≡ AddFields(Filter(p, S), f) WHEN p reads no field named in f and no limit",
			Apply: addFieldsPushdown,
		},
		{
			Name:  "AppendChainCollapse",
			Law:   "Append(Append(S, path, a), path, b) ≡ Append(S, path, a ++ b) WHEN b reads nothing under path",
			Apply: appendChainCollapse,
		},
	}
}

func none() option.Option[plan.Plan] { return option.None[plan.Plan]() }

var emptyDoc = eval.FromResult(ir.NewObject())

func constantFold(ev *eval.Evaluator) func(plan.Plan) option.Option[plan.Plan] {
	return func(p plan.Plan) option.Option[plan.Plan] {
		changed := false
		out := plan.MapExprs(p, func(e expr.Expr) expr.Expr {
			if e == nil {
				return nil
			}
			folded := FoldExpr(ev, e)
			if folded.String() != e.String() {
				changed = true
			}
			return folded
		})
		if !changed {
			return none()
		}
		return option.Some(out)
	}
}

// FoldExpr replaces constant subexpressions of e with their values and
// simplifies boolean and conditional forms whose outcome a literal
// decides. A subexpression that fails to evaluate is left as written.
func FoldExpr(ev *eval.Evaluator, e expr.Expr) expr.Expr {
	return expr.Rewrite(e, func(n expr.Expr) expr.Expr {
		if s, ok := simplify(n); ok {
			return s
		}
		if _, isLit := n.(expr.Literal); isLit || !expr.IsConstant(n) {
			return n
		}
		r, err := ev.EvalDoc(n, emptyDoc)
		if err != nil {
			return n
		}
		if s, ok := r.(ir.Scalar); ok {
			return expr.Literal{Value: s.Value}
		}
		return n
	})
}

func boolLit(e expr.Expr) (value, ok bool) {
	lit, isLit := e.(expr.Literal)
	if !isLit {
		return false, false
	}
	b, isBool := lit.Value.(ir.Bool)
	return bool(b), isBool
}

func nullLit(e expr.Expr) bool {
	lit, isLit := e.(expr.Literal)
	if !isLit {
		return false
	}
	_, isNull := lit.Value.(ir.Null)
	return lit.Value == nil || isNull
}

// simplify short-circuits forms decided by a literal operand.
func simplify(e expr.Expr) (expr.Expr, bool) {
	switch e := e.(type) {
	case expr.Binary:
		if !e.Op.IsLogical() {
			return nil, false
		}
		// absorbing: false for and, true for or
		absorb := e.Op == expr.OpOr
		if b, ok := boolLit(e.Left); ok {
			if b == absorb {
				return expr.Bool(absorb), true
			}
			if expr.YieldsBool(e.Right) {
				return e.Right, true
			}
		}
		if b, ok := boolLit(e.Right); ok && b == absorb {
			return expr.Bool(absorb), true
		}
	case expr.When:
		if nullLit(e.Cond) {
			return orNull(e.Else), true
		}
		if b, ok := boolLit(e.Cond); ok {
			if b {
				return e.Then, true
			}
			return orNull(e.Else), true
		}
	case expr.Case:
		branches := e.Branches
		for len(branches) > 0 {
			c := branches[0].Cond
			if b, ok := boolLit(c); ok && b {
				return branches[0].Value, true
			}
			if b, ok := boolLit(c); (ok && !b) || nullLit(c) {
				branches = branches[1:]
				continue
			}
			break
		}
		if len(branches) == len(e.Branches) {
			return nil, false
		}
		if len(branches) == 0 {
			return orNull(e.Else), true
		}
		return expr.Case{Branches: branches, Else: e.Else}, true
	case expr.Coalesce:
		args := e.Args
		for len(args) > 1 && nullLit(args[0]) {
			args = args[1:]
		}
		if lit, ok := args[0].(expr.Literal); ok && !nullLit(lit) {
			return lit, true
		}
		if len(args) != len(e.Args) {
			return expr.Coalesce{Args: args}, true
		}
	}
	return nil, false
}

func orNull(e expr.Expr) expr.Expr {
	if e == nil {
		return expr.Null()
	}
	return e
}

func filterTrue(p plan.Plan) option.Option[plan.Plan] {
	f, ok := p.(plan.Filter)
	if !ok {
		return none()
	}
	if b, ok := boolLit(f.Predicate); !ok || !b {
		return none()
	}
	if n, ok := f.Limit.Get(); ok {
		return option.Some[plan.Plan](plan.Head{Source: f.Source, N: n})
	}
	return option.Some(f.Source)
}

func filterFusion(p plan.Plan) option.Option[plan.Plan] {
	outer, ok := p.(plan.Filter)
	if !ok || outer.Limit.IsSome() {
		return none()
	}
	inner, ok := outer.Source.(plan.Filter)
	if !ok || inner.Limit.IsSome() {
		return none()
	}
	first := inner.Predicate
	if !expr.BoolSafe(outer.Predicate) {
		// null from the inner filter must not reach the outer predicate
		first = expr.IfNull(first, expr.Bool(false))
	}
	return option.Some[plan.Plan](plan.Filter{
		Source:    inner.Source,
		Predicate: expr.Binary{Op: expr.OpAnd, Left: first, Right: outer.Predicate},
	})
}

func headHead(p plan.Plan) option.Option[plan.Plan] {
	switch outer := p.(type) {
	case plan.Head:
		if inner, ok := outer.Source.(plan.Head); ok {
			return option.Some[plan.Plan](plan.Head{Source: inner.Source, N: min(outer.N, inner.N)})
		}
	case plan.Tail:
		if inner, ok := outer.Source.(plan.Tail); ok {
			return option.Some[plan.Plan](plan.Tail{Source: inner.Source, N: min(outer.N, inner.N)})
		}
	}
	return none()
}

func topKFusion(p plan.Plan) option.Option[plan.Plan] {
	head, ok := p.(plan.Head)
	if !ok {
		return none()
	}
	switch src := head.Source.(type) {
	case plan.Sort:
		return option.Some[plan.Plan](plan.TopK{Source: src.Source, Keys: src.Keys, K: head.N})
	case plan.TopK:
		return option.Some[plan.Plan](plan.TopK{Source: src.Source, Keys: src.Keys, K: min(head.N, src.K)})
	}
	return none()
}

func limitPushdown(p plan.Plan) option.Option[plan.Plan] {
	head, ok := p.(plan.Head)
	if !ok {
		return none()
	}
	f, ok := head.Source.(plan.Filter)
	if !ok {
		return none()
	}
	if lim, ok := f.Limit.Get(); ok {
		f.Limit = option.Some(min(lim, head.N))
		return option.Some[plan.Plan](f)
	}
	if hasOrdering(f.Source) {
		return none()
	}
	f.Limit = option.Some(head.N)
	return option.Some[plan.Plan](f)
}

func hasOrdering(p plan.Plan) bool {
	found := false
	plan.Walk(p, func(n plan.Plan) bool {
		switch n.(type) {
		case plan.Sort, plan.TopK, plan.Shuffle:
			found = true
		}
		return !found
	})
	return found
}

func sortFusion(p plan.Plan) option.Option[plan.Plan] {
	outer, ok := p.(plan.Sort)
	if !ok {
		return none()
	}
	inner, ok := outer.Source.(plan.Sort)
	if !ok {
		return none()
	}
	keys := append(slices.Clone(outer.Keys), inner.Keys...)
	return option.Some[plan.Plan](plan.Sort{Source: inner.Source, Keys: keys})
}

func filterBeforeSort(p plan.Plan) option.Option[plan.Plan] {
	f, ok := p.(plan.Filter)
	if !ok || f.Limit.IsSome() {
		return none()
	}
	s, ok := f.Source.(plan.Sort)
	if !ok {
		return none()
	}
	f.Source = s.Source
	s.Source = f
	return option.Some[plan.Plan](s)
}

func explodePushdown(p plan.Plan) option.Option[plan.Plan] {
	f, ok := p.(plan.Filter)
	if !ok || f.Limit.IsSome() {
		return none()
	}
	ex, ok := f.Source.(plan.Explode)
	if !ok || expr.References(f.Predicate, ex.Binding) {
		return none()
	}
	pred := f.Predicate
	if !expr.BoolSafe(pred) {
		pred = expr.And(KeepsRow(ex.Expr), pred)
	}
	f.Source = ex.Source
	f.Predicate = pred
	ex.Source = f
	return option.Some[plan.Plan](ex)
}

// KeepsRow is true for the documents Explode emits at least one row for:
// everything except an empty array.
func KeepsRow(e expr.Expr) expr.Expr {
	empty := expr.And(expr.Fn(expr.FnIsArray, e), expr.Eq(expr.Fn(expr.FnLength, e), expr.Int(0)))
	return expr.Not(empty)
}

func addFieldsPushdown(p plan.Plan) option.Option[plan.Plan] {
	f, ok := p.(plan.Filter)
	if !ok || f.Limit.IsSome() {
		return none()
	}
	af, ok := f.Source.(plan.AddFields)
	if !ok {
		return none()
	}
	fields, whole := expr.RootFields(f.Predicate)
	if whole {
		return none()
	}
	for _, nf := range af.Fields {
		if slices.Contains(fields, nf.Name) {
			return none()
		}
	}
	f.Source = af.Source
	af.Source = f
	return option.Some[plan.Plan](af)
}

func appendChainCollapse(p plan.Plan) option.Option[plan.Plan] {
	outer, ok := p.(plan.Append)
	if !ok {
		return none()
	}
	inner, ok := outer.Source.(plan.Append)
	if !ok || !inner.Path.Equal(outer.Path) {
		return none()
	}
	root, ok := outer.Path.RootField()
	if !ok {
		return none()
	}
	for _, v := range outer.Values {
		fields, whole := expr.RootFields(v)
		if whole || slices.Contains(fields, root) {
			return none()
		}
	}
	values := append(slices.Clone(inner.Values), outer.Values...)
	return option.Some[plan.Plan](plan.Append{Source: inner.Source, Path: outer.Path, Values: values})
}
