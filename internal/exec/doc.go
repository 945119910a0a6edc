// Package exec is the reference executor for query plans.
//
// An Executor evaluates a plan.Plan over the collections of a Catalog and
// returns the resulting rows. It follows the meaning of each operator
// directly, without cost-based choices; internal/optimizer is responsible
// for making the plan cheap.
//
// ROWS:
//
// A Row pairs a document (an eval.Doc over a stored tree or a computed
// result) with the binding chain built by Explode. Documents from the
// catalog are never copied until an operator reshapes them.
//
// PARALLELISM:
//
// Filter without a limit, Select and AddFields evaluate rows
// independently. With WithParallelism(n > 1) they run on a bounded ants
// pool. Output order is input order, and when several rows fail the error
// of the lowest row index is returned, so results match sequential runs.
//
// SCAN HINTS:
//
// When a Filter reads directly from a Scan, the Catalog receives the
// filter predicate as a hint. A catalog may use it to skip trees that
// cannot match; the Filter still runs over whatever is returned.
package exec
