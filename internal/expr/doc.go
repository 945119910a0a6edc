// Package expr provides the expression and path language of treeq.
//
// An Expr describes a computation over one tree or element without
// performing it. Expr is a sealed interface: the closed set of node types
// below is matched exhaustively by inference, evaluation and rewriting, so
// adding a node type means touching every switch.
//
//	References:   Literal, PathRef, Variable
//	Operators:    Binary (arithmetic, comparison, and/or), Unary (neg, not)
//	Functions:    Call (string, null, aggregation, array, object, type families)
//	Null:         Coalesce
//	Conditional:  When, Case
//	Scoped:       ArrayFilter, ArrayMap, Let
//	Type:         Cast
//	Constructors: ArrayCtor, ObjectCtor
//
// Paths are compiled once with ParsePath and evaluated many times. A path
// string round-trips exactly: ParsePath(s).String() == s.
//
// SURFACE SYNTAX:
//
// Parse accepts the textual form produced by String():
//
//	items[*].price                     path with wildcard
//	items[?@.active and @.qty > 0]     path with filter predicate
//	$.meta.version                     absolute path
//	$item.price                        path rooted at a bound variable
//	sum(items[*].b) > 10 or not is_null(owner)
//	case(score >= 90, "A", score >= 80, "B", "F")
//	filter(items, it, $it.price < 5)
//
// Operator precedence, lowest first: or, and, not, comparisons,
// additive, multiplicative, unary minus.
package expr
