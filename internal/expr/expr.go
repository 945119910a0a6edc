package expr

import "github.com/roach88/treeq/internal/ir"

// Expr is a node of the expression AST.
//
// This is a sealed interface - only types in this package implement it.
// Expr values are immutable; rewriting builds new nodes.
type Expr interface {
	// String renders the canonical surface syntax accepted by Parse.
	String() string

	exprNode() // Marker method - seals interface to this package
}

// Literal is a constant scalar.
type Literal struct {
	Value ir.Value
}

func (Literal) exprNode() {}

// PathRef navigates the current document, element or a bound variable.
type PathRef struct {
	Path Path
}

func (PathRef) exprNode() {}

// Variable resolves a name through the binding chain.
type Variable struct {
	Name string
}

func (Variable) exprNode() {}

// BinaryOp enumerates two-operand operators.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// IsArithmetic reports whether op is + - * / %.
func (op BinaryOp) IsArithmetic() bool { return op <= OpMod }

// IsComparison reports whether op is == != < <= > >=.
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpGe }

// IsLogical reports whether op is and/or.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// Binary applies an arithmetic, comparison or logical operator.
// And/Or short-circuit: Right is not evaluated once Left decides the result.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// UnaryOp enumerates one-operand operators.
type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Unary applies negation or logical not.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (Unary) exprNode() {}

// Call applies a named function from the function table.
type Call struct {
	Fn   Func
	Args []Expr
}

func (Call) exprNode() {}

// Coalesce returns its first non-null argument, evaluating left to right
// and stopping at the first non-null.
type Coalesce struct {
	Args []Expr
}

func (Coalesce) exprNode() {}

// When is a two-way conditional. A nil Else yields null.
type When struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (When) exprNode() {}

// Branch is one condition/value arm of a Case.
type Branch struct {
	Cond  Expr
	Value Expr
}

// Case returns the value of the first branch whose condition is true.
// Null or false conditions are skipped; no match and nil Else yields null.
type Case struct {
	Branches []Branch
	Else     Expr
}

func (Case) exprNode() {}

// Cast converts a value to another scalar kind.
type Cast struct {
	Operand Expr
	To      ir.Kind
}

func (Cast) exprNode() {}

// ArrayFilter keeps the elements of Array for which Predicate, evaluated
// with Binding bound to the element, is exactly true. Non-array input passes
// through unchanged.
type ArrayFilter struct {
	Array     Expr
	Binding   string
	Predicate Expr
}

func (ArrayFilter) exprNode() {}

// ArrayMap evaluates Body once per element of Array with Binding bound to the
// element. Null input maps to an empty array; any other non-array input is
// mapped as a single element.
type ArrayMap struct {
	Array   Expr
	Binding string
	Body    Expr
}

func (ArrayMap) exprNode() {}

// Let evaluates Body with Name bound to the value of Value.
type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

func (Let) exprNode() {}

// ArrayCtor builds an array from its items.
type ArrayCtor struct {
	Items []Expr
}

func (ArrayCtor) exprNode() {}

// ObjectField is one named member of an ObjectCtor.
type ObjectField struct {
	Name  string
	Value Expr
}

// ObjectCtor builds an object from named expressions.
type ObjectCtor struct {
	Fields []ObjectField
}

func (ObjectCtor) exprNode() {}

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}
