package expr

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/treeq/internal/ir"
)

const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precNeg
	precPrimary
)

var binaryText = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "and", OpOr: "or",
}

// String returns the operator's surface token.
func (op BinaryOp) String() string {
	if int(op) < len(binaryText) {
		return binaryText[op]
	}
	return "?"
}

func (op BinaryOp) precedence() int {
	switch {
	case op == OpOr:
		return precOr
	case op == OpAnd:
		return precAnd
	case op.IsComparison():
		return precCompare
	case op == OpAdd || op == OpSub:
		return precAdd
	}
	return precMul
}

func precedence(e Expr) int {
	switch e := e.(type) {
	case Binary:
		return e.Op.precedence()
	case Unary:
		if e.Op == OpNot {
			return precNot
		}
		return precNeg
	}
	return precPrimary
}

func wrap(e Expr, parens bool) string {
	if parens {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func (e Literal) String() string { return FormatValue(e.Value) }

// FormatValue renders a scalar as an expression literal.
func FormatValue(v ir.Value) string {
	switch v := v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.Bool:
		return strconv.FormatBool(bool(v))
	case ir.Int:
		return strconv.FormatInt(int64(v), 10)
	case ir.Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return `cast(` + strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64)) + `, "float")`
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case ir.String:
		return strconv.Quote(string(v))
	case ir.Date:
		return `date(` + strconv.Quote(ir.FormatDate(v)) + `)`
	case ir.DateTime:
		return `datetime(` + strconv.Quote(ir.FormatDateTime(v)) + `)`
	case ir.Duration:
		return `duration(` + strconv.Quote(time.Duration(v).String()) + `)`
	case ir.Binary:
		return `binary(` + strconv.Quote(base64.StdEncoding.EncodeToString(v)) + `)`
	}
	return "null"
}

func (e PathRef) String() string {
	s := e.Path.String()
	if strings.HasPrefix(s, "[") {
		return "." + s
	}
	return s
}

func (e Variable) String() string { return "$" + e.Name }

func (e Binary) String() string {
	p := e.Op.precedence()
	leftParens := precedence(e.Left) < p
	rightParens := precedence(e.Right) <= p
	if e.Op.IsComparison() {
		leftParens = precedence(e.Left) <= p
	}
	return wrap(e.Left, leftParens) + " " + e.Op.String() + " " + wrap(e.Right, rightParens)
}

func (e Unary) String() string {
	if e.Op == OpNot {
		return "not " + wrap(e.Operand, precedence(e.Operand) < precNot)
	}
	parens := precedence(e.Operand) < precNeg
	if lit, ok := e.Operand.(Literal); ok {
		if f, numeric := ir.AsFloat(lit.Value); numeric && f >= 0 {
			parens = true
		}
	}
	return "-" + wrap(e.Operand, parens)
}

func joinArgs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func (e Call) String() string { return e.Fn.String() + "(" + joinArgs(e.Args) + ")" }

func (e Coalesce) String() string { return "coalesce(" + joinArgs(e.Args) + ")" }

func (e When) String() string {
	args := []Expr{e.Cond, e.Then}
	if e.Else != nil {
		args = append(args, e.Else)
	}
	return "when(" + joinArgs(args) + ")"
}

func (e Case) String() string {
	args := make([]Expr, 0, 2*len(e.Branches)+1)
	for _, b := range e.Branches {
		args = append(args, b.Cond, b.Value)
	}
	if e.Else != nil {
		args = append(args, e.Else)
	}
	return "case(" + joinArgs(args) + ")"
}

func (e Cast) String() string {
	return "cast(" + e.Operand.String() + ", " + strconv.Quote(e.To.String()) + ")"
}

func (e ArrayFilter) String() string {
	return "filter(" + e.Array.String() + ", " + e.Binding + ", " + e.Predicate.String() + ")"
}

func (e ArrayMap) String() string {
	return "map(" + e.Array.String() + ", " + e.Binding + ", " + e.Body.String() + ")"
}

func (e Let) String() string {
	return "let(" + e.Name + ", " + e.Value.String() + ", " + e.Body.String() + ")"
}

func (e ArrayCtor) String() string { return "[" + joinArgs(e.Items) + "]" }

func (e ObjectCtor) String() string {
	if len(e.Fields) == 0 {
		return "{}"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = strconv.Quote(f.Name) + ": " + f.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
