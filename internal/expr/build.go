package expr

import "github.com/roach88/treeq/internal/ir"

// Builders for constructing expressions in Go code.

// Lit wraps a scalar value.
func Lit(v ir.Value) Literal { return Literal{Value: v} }

// Int returns an integer literal.
func Int(n int64) Literal { return Literal{Value: ir.Int(n)} }

// Float returns a float literal.
func Float(f float64) Literal { return Literal{Value: ir.Float(f)} }

// Str returns a string literal.
func Str(s string) Literal { return Literal{Value: ir.String(s)} }

// Bool returns a boolean literal.
func Bool(b bool) Literal { return Literal{Value: ir.Bool(b)} }

// Null returns the null literal.
func Null() Literal { return Literal{Value: ir.Null{}} }

// P parses a path string into a PathRef, panicking on malformed input.
func P(path string) PathRef { return PathRef{Path: MustParsePath(path)} }

// Ref wraps a compiled path.
func Ref(p Path) PathRef { return PathRef{Path: p} }

// Var references a binding.
func Var(name string) Variable { return Variable{Name: name} }

func bin(op BinaryOp) func(a, b Expr) Expr {
	return func(a, b Expr) Expr { return Binary{Op: op, Left: a, Right: b} }
}

var (
	Add = bin(OpAdd)
	Sub = bin(OpSub)
	Mul = bin(OpMul)
	Div = bin(OpDiv)
	Mod = bin(OpMod)
	Eq  = bin(OpEq)
	Ne  = bin(OpNe)
	Lt  = bin(OpLt)
	Le  = bin(OpLe)
	Gt  = bin(OpGt)
	Ge  = bin(OpGe)
)

// And conjoins operands left to right. And() is true.
func And(operands ...Expr) Expr {
	return fold(OpAnd, Bool(true), operands)
}

// Or disjoins operands left to right. Or() is false.
func Or(operands ...Expr) Expr {
	return fold(OpOr, Bool(false), operands)
}

func fold(op BinaryOp, empty Expr, operands []Expr) Expr {
	if len(operands) == 0 {
		return empty
	}
	out := operands[0]
	for _, e := range operands[1:] {
		out = Binary{Op: op, Left: out, Right: e}
	}
	return out
}

// Not negates a boolean.
func Not(e Expr) Expr { return Unary{Op: OpNot, Operand: e} }

// Neg negates a number.
func Neg(e Expr) Expr { return Unary{Op: OpNeg, Operand: e} }

// Fn applies a built-in function.
func Fn(f Func, args ...Expr) Expr { return Call{Fn: f, Args: args} }

// Sum totals a vector.
func Sum(e Expr) Expr { return Fn(FnSum, e) }

// Count counts a vector.
func Count(e Expr) Expr { return Fn(FnCount, e) }

// AnyOf reduces a boolean vector with or.
func AnyOf(e Expr) Expr { return Fn(FnAny, e) }

// AllOf reduces a boolean vector with and.
func AllOf(e Expr) Expr { return Fn(FnAll, e) }

// IsNull tests for null or missing.
func IsNull(e Expr) Expr { return Fn(FnIsNull, e) }

// IfNull returns def when e is null.
func IfNull(e, def Expr) Expr { return Coalesce{Args: []Expr{e, def}} }

// CaseBuilder accumulates Case branches.
type CaseBuilder struct {
	branches []Branch
}

// NewCase starts a Case expression.
func NewCase() *CaseBuilder { return &CaseBuilder{} }

// When adds a branch.
func (b *CaseBuilder) When(cond, value Expr) *CaseBuilder {
	b.branches = append(b.branches, Branch{Cond: cond, Value: value})
	return b
}

// Otherwise finishes the Case with a default value.
func (b *CaseBuilder) Otherwise(value Expr) Case {
	return Case{Branches: append([]Branch(nil), b.branches...), Else: value}
}

// End finishes the Case; unmatched input yields null.
func (b *CaseBuilder) End() Case {
	return Case{Branches: append([]Branch(nil), b.branches...)}
}

// Filter keeps array elements matching pred with binding bound.
func Filter(array Expr, binding string, pred Expr) ArrayFilter {
	return ArrayFilter{Array: array, Binding: binding, Predicate: pred}
}

// Map transforms each array element.
func Map(array Expr, binding string, body Expr) ArrayMap {
	return ArrayMap{Array: array, Binding: binding, Body: body}
}
