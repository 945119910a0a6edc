package expr

import (
	"fmt"
	"slices"

	"github.com/roach88/treeq/internal/ir"
)

// Children returns the direct sub-expressions of e in a fixed order.
// Predicates embedded in path filter segments are not children.
func Children(e Expr) []Expr {
	switch e := e.(type) {
	case Literal, PathRef, Variable:
		return nil
	case Binary:
		return []Expr{e.Left, e.Right}
	case Unary:
		return []Expr{e.Operand}
	case Call:
		return e.Args
	case Coalesce:
		return e.Args
	case When:
		if e.Else == nil {
			return []Expr{e.Cond, e.Then}
		}
		return []Expr{e.Cond, e.Then, e.Else}
	case Case:
		out := make([]Expr, 0, 2*len(e.Branches)+1)
		for _, b := range e.Branches {
			out = append(out, b.Cond, b.Value)
		}
		if e.Else != nil {
			out = append(out, e.Else)
		}
		return out
	case Cast:
		return []Expr{e.Operand}
	case ArrayFilter:
		return []Expr{e.Array, e.Predicate}
	case ArrayMap:
		return []Expr{e.Array, e.Body}
	case Let:
		return []Expr{e.Value, e.Body}
	case ArrayCtor:
		return e.Items
	case ObjectCtor:
		out := make([]Expr, len(e.Fields))
		for i, f := range e.Fields {
			out[i] = f.Value
		}
		return out
	}
	panic(fmt.Sprintf("expr: unknown node %T", e))
}

// WithChildren returns a copy of e whose children, in Children order, are kids.
func WithChildren(e Expr, kids []Expr) Expr {
	switch e := e.(type) {
	case Literal, PathRef, Variable:
		return e
	case Binary:
		return Binary{Op: e.Op, Left: kids[0], Right: kids[1]}
	case Unary:
		return Unary{Op: e.Op, Operand: kids[0]}
	case Call:
		return Call{Fn: e.Fn, Args: slices.Clone(kids)}
	case Coalesce:
		return Coalesce{Args: slices.Clone(kids)}
	case When:
		w := When{Cond: kids[0], Then: kids[1]}
		if len(kids) == 3 {
			w.Else = kids[2]
		}
		return w
	case Case:
		c := Case{Branches: make([]Branch, len(e.Branches))}
		for i := range e.Branches {
			c.Branches[i] = Branch{Cond: kids[2*i], Value: kids[2*i+1]}
		}
		if e.Else != nil {
			c.Else = kids[len(kids)-1]
		}
		return c
	case Cast:
		return Cast{Operand: kids[0], To: e.To}
	case ArrayFilter:
		return ArrayFilter{Array: kids[0], Binding: e.Binding, Predicate: kids[1]}
	case ArrayMap:
		return ArrayMap{Array: kids[0], Binding: e.Binding, Body: kids[1]}
	case Let:
		return Let{Name: e.Name, Value: kids[0], Body: kids[1]}
	case ArrayCtor:
		return ArrayCtor{Items: slices.Clone(kids)}
	case ObjectCtor:
		o := ObjectCtor{Fields: make([]ObjectField, len(e.Fields))}
		for i, f := range e.Fields {
			o.Fields[i] = ObjectField{Name: f.Name, Value: kids[i]}
		}
		return o
	}
	panic(fmt.Sprintf("expr: unknown node %T", e))
}

// Rewrite applies fn bottom-up, rebuilding only nodes whose children changed.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	kids := Children(e)
	if len(kids) > 0 {
		changed := false
		next := make([]Expr, len(kids))
		for i, k := range kids {
			next[i] = Rewrite(k, fn)
			if !Equal(next[i], k) {
				changed = true
			}
		}
		if changed {
			e = WithChildren(e, next)
		}
	}
	return fn(e)
}

// Walk calls fn for e and every descendant, including predicates inside
// path filter segments. Returning false from fn skips the node's descendants.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	if ref, ok := e.(PathRef); ok {
		for _, s := range ref.Path.Segments {
			if s.Kind == SegFilter && s.Filter != nil {
				Walk(s.Filter, fn)
			}
		}
		return
	}
	for _, k := range Children(e) {
		Walk(k, fn)
	}
}

// FreeVars returns the sorted names e reads from enclosing bindings.
func FreeVars(e Expr) []string {
	out := map[string]struct{}{}
	freeVars(e, map[string]int{}, out)
	names := make([]string, 0, len(out))
	for n := range out {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// References reports whether e reads the binding name.
func References(e Expr, name string) bool {
	return slices.Contains(FreeVars(e), name)
}

func freeVars(e Expr, bound map[string]int, out map[string]struct{}) {
	scoped := func(name string, body Expr) {
		bound[name]++
		freeVars(body, bound, out)
		bound[name]--
	}
	switch e := e.(type) {
	case Variable:
		if bound[e.Name] == 0 {
			out[e.Name] = struct{}{}
		}
	case PathRef:
		if e.Path.Var != "" && bound[e.Path.Var] == 0 {
			out[e.Path.Var] = struct{}{}
		}
		for _, s := range e.Path.Segments {
			if s.Kind == SegFilter && s.Filter != nil {
				freeVars(s.Filter, bound, out)
			}
		}
	case ArrayFilter:
		freeVars(e.Array, bound, out)
		scoped(e.Binding, e.Predicate)
	case ArrayMap:
		freeVars(e.Array, bound, out)
		scoped(e.Binding, e.Body)
	case Let:
		freeVars(e.Value, bound, out)
		scoped(e.Name, e.Body)
	default:
		for _, k := range Children(e) {
			freeVars(k, bound, out)
		}
	}
}

// RootFields returns the sorted top-level document fields e reads. whole is
// true when e may read the document as a whole, in which case fields is
// incomplete. Paths relative to a filter element are not document reads.
func RootFields(e Expr) (fields []string, whole bool) {
	seen := map[string]struct{}{}
	rootFields(e, false, seen, &whole)
	for f := range seen {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields, whole
}

func rootFields(e Expr, inElement bool, seen map[string]struct{}, whole *bool) {
	ref, ok := e.(PathRef)
	if !ok {
		for _, k := range Children(e) {
			rootFields(k, inElement, seen, whole)
		}
		return
	}
	p := ref.Path
	readsRoot := p.Absolute || (p.Var == "" && !inElement)
	if readsRoot {
		segs := p.Segments
		if len(segs) > 0 && segs[0].Kind == SegCurrent {
			segs = segs[1:]
		}
		if len(segs) > 0 && segs[0].Kind == SegField {
			seen[segs[0].Name] = struct{}{}
		} else {
			*whole = true
		}
	}
	for _, s := range p.Segments {
		if s.Kind == SegFilter && s.Filter != nil {
			rootFields(s.Filter, true, seen, whole)
		}
	}
}

// IsVector reports the syntactic cardinality of e: true when e evaluates to
// a sequence per input tree rather than a single value. Vector results are
// always arrays; an array-valued field read by a plain path is a scalar.
func IsVector(e Expr) bool {
	switch e := e.(type) {
	case Literal, Variable:
		return false
	case PathRef:
		return e.Path.IsVector()
	case Binary:
		if e.Op.IsLogical() {
			return false
		}
		return IsVector(e.Left) || IsVector(e.Right)
	case Unary:
		return e.Op == OpNeg && IsVector(e.Operand)
	case Call:
		return callIsVector(e)
	case Coalesce:
		return slices.ContainsFunc(e.Args, IsVector)
	case When:
		return IsVector(e.Then) || (e.Else != nil && IsVector(e.Else))
	case Case:
		for _, b := range e.Branches {
			if IsVector(b.Value) {
				return true
			}
		}
		return e.Else != nil && IsVector(e.Else)
	case Cast:
		return IsVector(e.Operand)
	case ArrayFilter, ArrayMap, ArrayCtor:
		return true
	case Let:
		return IsVector(e.Body)
	case ObjectCtor:
		return false
	}
	return false
}

func callIsVector(c Call) bool {
	first := len(c.Args) > 0 && IsVector(c.Args[0])
	switch c.Fn {
	case FnSplit, FnSlice, FnUnique, FnSort, FnReverse, FnConcat, FnKeys, FnValues:
		return true
	case FnJoin, FnLength, FnGet, FnArrayContains:
		return false
	}
	switch c.Fn.Info().Family {
	case FamilyString, FamilyObject:
		return first
	case FamilyNull:
		return c.Fn == FnNullIf && first
	}
	return false
}

// YieldsBool reports whether e always evaluates to a boolean or null.
func YieldsBool(e Expr) bool {
	switch e := e.(type) {
	case Literal:
		switch e.Value.(type) {
		case ir.Bool, ir.Null:
			return true
		}
		return false
	case Binary:
		return (e.Op.IsComparison() || e.Op.IsLogical()) && !IsVector(e)
	case Unary:
		return e.Op == OpNot
	case Call:
		return e.Fn.IsPredicate()
	case Coalesce:
		for _, a := range e.Args {
			if !YieldsBool(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Infallible reports whether evaluating e can never raise an error for any
// document. The analysis is conservative: false means "may fail".
func Infallible(e Expr) bool {
	switch e := e.(type) {
	case Literal:
		return true
	case PathRef:
		return safePath(e.Path)
	case Binary:
		switch {
		case e.Op == OpEq || e.Op == OpNe:
			return scalarSafe(e.Left) && scalarSafe(e.Right)
		case e.Op.IsLogical():
			return BoolSafe(e.Left) && BoolSafe(e.Right)
		}
		return false
	case Unary:
		return e.Op == OpNot && BoolSafe(e.Operand)
	case Call:
		switch {
		case e.Fn == FnIsNull, e.Fn == FnIsNotNull, e.Fn.Info().Family == FamilyType:
			return allInfallible(e.Args)
		}
		return false
	case Coalesce:
		return allInfallible(e.Args)
	case When:
		return BoolSafe(e.Cond) && Infallible(e.Then) && (e.Else == nil || Infallible(e.Else))
	case Case:
		for _, b := range e.Branches {
			if !BoolSafe(b.Cond) || !Infallible(b.Value) {
				return false
			}
		}
		return e.Else == nil || Infallible(e.Else)
	case ArrayCtor:
		return allInfallible(e.Items)
	case ObjectCtor:
		for _, f := range e.Fields {
			if !Infallible(f.Value) {
				return false
			}
		}
		return true
	}
	return false
}

func allInfallible(es []Expr) bool {
	for _, e := range es {
		if !Infallible(e) {
			return false
		}
	}
	return true
}

// BoolSafe reports whether e always yields a boolean or null and never
// raises. Such a predicate can run on documents a plan would otherwise
// have dropped.
func BoolSafe(e Expr) bool { return YieldsBool(e) && Infallible(e) }

func scalarSafe(e Expr) bool { return !IsVector(e) && Infallible(e) }

// safePath reports whether navigating p cannot fail: no fixed indices, no
// variable root, and infallible filter predicates.
func safePath(p Path) bool {
	if p.Var != "" {
		return false
	}
	for _, s := range p.Segments {
		switch s.Kind {
		case SegIndex:
			return false
		case SegFilter:
			if s.Filter == nil || !Infallible(s.Filter) {
				return false
			}
		}
	}
	return true
}

// IsConstant reports whether e reads neither documents nor bindings, so its
// value is the same for every evaluation.
func IsConstant(e Expr) bool {
	constant := true
	Walk(e, func(n Expr) bool {
		switch n.(type) {
		case PathRef:
			constant = false
		}
		return constant
	})
	return constant && len(FreeVars(e)) == 0
}
