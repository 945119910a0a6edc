// Package compiler turns query documents into query plans.
//
// A query document names a source collection and a pipeline of steps,
// each step one plan operator:
//
//	from: orders
//	pipeline:
//	  - filter: status == "open"
//	  - sort: [{key: total, desc: true}]
//	  - head: 10
//
// Documents are written in YAML or CUE. YAML documents are decoded
// strictly (unknown fields are errors). CUE documents live under a
// top-level "query" struct and are unified with the embedded #Query
// schema before decoding, so shape errors carry CUE source positions.
//
// CompileDoc parses every expression and path in the document, builds the
// plan bottom-up and runs plan.Validate on the result.
package compiler
