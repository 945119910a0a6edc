// Package querysql translates scan hints into SQLite prefilters.
//
// A hint is the predicate of a Filter reading directly from a Scan. The
// compiler turns the parts of it that SQLite can decide into a WHERE
// clause over the JSON documents table. The clause is a superset test:
// every document for which the predicate could be true, or could fail,
// is kept. The Filter still runs over whatever the prefilter returns.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
)

// alwaysTrue is the clause for predicates SQLite cannot decide.
const alwaysTrue = "1 = 1"

// SQLCompiler compiles collection scans to parameterized SQL for SQLite.
//
// All queries order by seq then id so scans are deterministic. Values are
// always parameterized, never interpolated.
type SQLCompiler struct {
	// Table holds one row per document.
	Table string

	// Column holds the document JSON text.
	Column string
}

// NewSQLCompiler creates a compiler for the store's documents table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "documents", Column: "doc"}
}

// Compile returns the query selecting collection's documents, narrowed by
// hint where possible. hint may be nil.
func (c *SQLCompiler) Compile(collection string, hint expr.Expr) (string, []any) {
	where, params := c.Predicate(hint)
	params = append([]any{collection}, params...)
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE collection = ? AND (%s) ORDER BY seq ASC, id COLLATE BINARY ASC",
		c.Column, c.Table, where)
	return sql, params
}

// Predicate compiles e to a WHERE fragment. Parts of e that cannot be
// expressed become always-true; the result never excludes a document e
// would keep or fail on.
func (c *SQLCompiler) Predicate(e expr.Expr) (string, []any) {
	if e == nil {
		return alwaysTrue, nil
	}
	if sql, params, ok := c.compile(e); ok {
		return sql, params
	}
	return alwaysTrue, nil
}

// compile returns ok=false when e has no SQL translation at all.
func (c *SQLCompiler) compile(e expr.Expr) (string, []any, bool) {
	switch e := e.(type) {
	case expr.Binary:
		switch e.Op {
		case expr.OpAnd:
			return c.compileAnd(e)
		case expr.OpOr:
			l, lp, lok := c.compile(e.Left)
			r, rp, rok := c.compile(e.Right)
			if !lok || !rok {
				return "", nil, false
			}
			return fmt.Sprintf("(%s OR %s)", l, r), append(lp, rp...), true
		case expr.OpEq, expr.OpNe, expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe:
			return c.compileComparison(e)
		}
	case expr.Literal:
		if b, ok := e.Value.(ir.Bool); ok && !bool(b) {
			return "1 = 0", nil, true
		}
		if b, ok := e.Value.(ir.Bool); ok && bool(b) {
			return alwaysTrue, nil, true
		}
	}
	return "", nil, false
}

// compileAnd keeps whichever side translates. Dropping a conjunct only
// widens the result.
func (c *SQLCompiler) compileAnd(e expr.Binary) (string, []any, bool) {
	l, lp, lok := c.compile(e.Left)
	r, rp, rok := c.compile(e.Right)
	switch {
	case lok && rok:
		return fmt.Sprintf("(%s AND %s)", l, r), append(lp, rp...), true
	case lok:
		return l, lp, true
	case rok:
		return r, rp, true
	}
	return "", nil, false
}

var flipped = map[expr.BinaryOp]expr.BinaryOp{
	expr.OpEq: expr.OpEq, expr.OpNe: expr.OpNe,
	expr.OpLt: expr.OpGt, expr.OpLe: expr.OpGe,
	expr.OpGt: expr.OpLt, expr.OpGe: expr.OpLe,
}

var sqlOps = map[expr.BinaryOp]string{
	expr.OpLt: "<", expr.OpLe: "<=", expr.OpGt: ">", expr.OpGe: ">=",
}

// compileComparison handles path-versus-literal comparisons.
func (c *SQLCompiler) compileComparison(e expr.Binary) (string, []any, bool) {
	op := e.Op
	ref, lit, ok := pathAndLiteral(e.Left, e.Right)
	if !ok {
		ref, lit, ok = pathAndLiteral(e.Right, e.Left)
		if !ok {
			return "", nil, false
		}
		op = flipped[op]
	}
	jsonPath, ok := JSONPath(ref.Path)
	if !ok {
		return "", nil, false
	}
	extract := fmt.Sprintf("json_extract(%s, ?)", c.Column)

	if _, isNull := lit.Value.(ir.Null); isNull || lit.Value == nil {
		switch op {
		case expr.OpEq:
			return extract + " IS NULL", []any{jsonPath}, true
		case expr.OpNe:
			return extract + " IS NOT NULL", []any{jsonPath}, true
		}
		return "", nil, false
	}

	param, sqlType, ok := literalParam(lit.Value)
	if !ok {
		return "", nil, false
	}
	switch op {
	case expr.OpEq:
		return extract + " = ?", []any{jsonPath, param}, true
	case expr.OpNe:
		// true and 1 are indistinguishable once extracted
		return "", nil, false
	}
	if sqlType == "" {
		return "", nil, false
	}
	// A value of another type raises a type error in the filter, so the
	// document has to reach it.
	sql := fmt.Sprintf("(json_type(%s, ?) NOT IN (%s) OR %s %s ?)", c.Column, sqlType, extract, sqlOps[op])
	return sql, []any{jsonPath, jsonPath, param}, true
}

func pathAndLiteral(a, b expr.Expr) (expr.PathRef, expr.Literal, bool) {
	ref, ok := a.(expr.PathRef)
	if !ok {
		return expr.PathRef{}, expr.Literal{}, false
	}
	lit, ok := b.(expr.Literal)
	return ref, lit, ok
}

// literalParam converts a literal to a SQL parameter and names the JSON
// types it orders against. Booleans extract as 1 and 0 and only support
// equality.
func literalParam(v ir.Value) (any, string, bool) {
	switch v := v.(type) {
	case ir.Bool:
		if v {
			return 1, "", true
		}
		return 0, "", true
	case ir.Int:
		return int64(v), "'integer', 'real'", true
	case ir.Float:
		return float64(v), "'integer', 'real'", true
	case ir.String:
		return string(v), "'text'", true
	}
	return nil, "", false
}

// JSONPath renders a field-only document path in SQLite JSON path syntax.
// Paths with indices, wildcards, filters, variables or element references
// have no translation.
func JSONPath(p expr.Path) (string, bool) {
	if p.Var != "" || len(p.Segments) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("$")
	for _, s := range p.Segments {
		if s.Kind != expr.SegField || strings.ContainsAny(s.Name, `"\`) {
			return "", false
		}
		b.WriteString(".")
		if isIdent(s.Name) {
			b.WriteString(s.Name)
		} else {
			b.WriteString(strconv.Quote(s.Name))
		}
	}
	return b.String(), true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
