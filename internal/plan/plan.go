package plan

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/option"
)

// Plan is a query operator. Only types in this package implement it.
type Plan interface {
	planNode() // Marker method - seals interface to this package
}

// Scan reads every tree of a named collection in collection order.
type Scan struct {
	Collection string
}

// Filter keeps rows whose predicate is true. Null counts as false.
// With a limit, Filter stops after that many matches.
type Filter struct {
	Source    Plan
	Predicate expr.Expr
	Limit     option.Option[int]
}

// Head keeps the first N rows.
type Head struct {
	Source Plan
	N      int
}

// Tail keeps the last N rows.
type Tail struct {
	Source Plan
	N      int
}

// Take keeps the rows at Indices, in index order. Negative indices count
// from the end; out-of-range indices are skipped.
type Take struct {
	Source  Plan
	Indices []int
}

// Sample keeps N rows chosen by a seeded generator, in input order.
type Sample struct {
	Source Plan
	N      int
	Seed   uint64
}

// Shuffle permutes rows with a seeded generator.
type Shuffle struct {
	Source Plan
	Seed   uint64
}

// SortKey orders rows by one expression.
type SortKey struct {
	Expr expr.Expr
	Desc bool
}

// Sort orders rows stably by Keys, the first key most significant.
type Sort struct {
	Source Plan
	Keys   []SortKey
}

// TopK keeps the first K rows of Sort{Keys}.
type TopK struct {
	Source Plan
	Keys   []SortKey
	K      int
}

// NamedExpr is an output field computed from each row.
type NamedExpr struct {
	Name string
	Expr expr.Expr
}

// Select replaces each document with an object of the named fields.
type Select struct {
	Source Plan
	Fields []NamedExpr
}

// AddFields adds or overwrites fields of each object document.
type AddFields struct {
	Source Plan
	Fields []NamedExpr
}

// Explode emits one row per element of Expr, with the element bound to
// Binding and the document unchanged. Rows whose sequence is empty are
// dropped; a missing or non-array value passes through as one row bound to
// that value.
type Explode struct {
	Source  Plan
	Expr    expr.Expr
	Binding string
}

// AggSpec reduces a group of rows to one field. Arg is evaluated per row
// and the values are reduced with Fn; a vector Arg contributes each of its
// elements. A nil Arg stands for the row itself, so count with no argument
// counts rows.
type AggSpec struct {
	Name string
	Fn   expr.Func
	Arg  expr.Expr
}

// GroupBy emits one object per distinct key tuple, in first-seen order,
// holding the key fields followed by the aggregates.
type GroupBy struct {
	Source Plan
	Keys   []NamedExpr
	Aggs   []AggSpec
}

// IndexBy emits a single object mapping each key, rendered as text, to the
// last document carrying it.
type IndexBy struct {
	Source Plan
	Key    expr.Expr
}

// UniqueBy keeps the first row for each distinct key.
type UniqueBy struct {
	Source Plan
	Key    expr.Expr
}

// Aggregate reduces all rows to a single object of aggregates.
type Aggregate struct {
	Source Plan
	Aggs   []AggSpec
}

// Append adds Values to the end of the array at Path, creating it when
// absent.
type Append struct {
	Source Plan
	Path   expr.Path
	Values []expr.Expr
}

// Insert places Value at Index of the array at Path. Indices are clamped
// to the array bounds; negative indices count from the end.
type Insert struct {
	Source Plan
	Path   expr.Path
	Index  int
	Value  expr.Expr
}

// Set writes Value at Path, creating intermediate objects.
type Set struct {
	Source Plan
	Path   expr.Path
	Value  expr.Expr
}

// Remove deletes the field at Path when present.
type Remove struct {
	Source Plan
	Path   expr.Path
}

func (Scan) planNode()      {}
func (Filter) planNode()    {}
func (Head) planNode()      {}
func (Tail) planNode()      {}
func (Take) planNode()      {}
func (Sample) planNode()    {}
func (Shuffle) planNode()   {}
func (Sort) planNode()      {}
func (TopK) planNode()      {}
func (Select) planNode()    {}
func (AddFields) planNode() {}
func (Explode) planNode()   {}
func (GroupBy) planNode()   {}
func (IndexBy) planNode()   {}
func (UniqueBy) planNode()  {}
func (Aggregate) planNode() {}
func (Append) planNode()    {}
func (Insert) planNode()    {}
func (Set) planNode()       {}
func (Remove) planNode()    {}
