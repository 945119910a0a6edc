// Package harness runs query scenarios: a query document, the data it
// reads, and what it must produce.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: top_open_orders
//	description: "Largest open orders first"
//	source: memory            # or sqlite
//	data:
//	  orders: |
//	    {"id": 1, "status": "open", "total": 10}
//	    {"id": 2, "status": "closed", "total": 25}
//	data_files:
//	  customers: customers.jsonl   # relative to the scenario file
//	query:
//	  from: orders
//	  pipeline:
//	    - filter: status == "open"
//	    - sort: [{key: total, desc: true}]
//	    - head: 1
//	expect:
//	  rows: '[{"id": 1, "status": "open", "total": 10}]'
//	assertions:
//	  - type: row_count
//	    count: 1
//	  - type: rule_fired
//	    rule: TopKFusion
//
// expect.rows compares the whole output, in order; objects compare
// without regard to field order. expect.error names an error kind
// (e.g. TYPE_MISMATCH) the query must fail with instead.
//
// # Assertion Types
//
//   - row_count: the output has exactly count rows
//   - contains: some output row holds every field of row
//   - ordered_by: the output is sorted by key (desc for descending)
//   - rule_fired: the optimizer applied rule at least once
//
// # Equivalence
//
// Every scenario also runs without the optimizer. When the unoptimized
// plan succeeds, the optimized plan must produce the same rows; a
// mismatch fails the scenario.
//
// # Golden Files
//
// RunWithGolden snapshots the original plan, the optimized plan, the
// rule trace and the output rows under testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
