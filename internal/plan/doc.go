// Package plan provides the query plan algebra of treeq.
//
// A Plan is a tree of operators over a named collection of trees. Plans
// describe meaning only; internal/exec runs them and internal/optimizer
// rewrites them into cheaper equivalent plans.
//
// OPERATOR FAMILIES:
//
//	Source:     Scan
//	Selection:  Filter (optional limit), Head, Tail, Take, Sample
//	Ordering:   Sort, Shuffle, TopK
//	Shape:      Select, AddFields
//	Expansion:  Explode
//	Grouping:   GroupBy, IndexBy, UniqueBy, Aggregate
//	Mutation:   Append, Insert, Set, Remove
//
// ROWS:
//
// Operators consume and produce rows. A row is a document plus the
// variables bound above it. Explode binds its element to a name that later
// expressions read as $name; Select, AddFields, the mutations and the
// selection operators keep the bindings of their input; GroupBy, IndexBy and
// Aggregate emit fresh rows with no bindings.
//
// SEALED INTERFACE:
//
// Plan is sealed with a marker method, so rewriters and executors switch
// over the closed set of node types:
//
//	switch p := p.(type) {
//	case Scan:
//	    // leaf
//	case Filter:
//	    // p.Source, p.Predicate, p.Limit
//	}
//
// Nodes are immutable values. Rewrites build new nodes that share
// unchanged subtrees with the original.
package plan
