package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text stored in golden files:
//
//	scenario: top_open_orders
//
//	plan:
//	Head(1)
//	└─ Sort(total desc)
//	   └─ Scan(orders)
//
//	optimized:
//	TopK(1, total desc)
//	└─ Scan(orders)
//
//	trace:
//	  1 TopKFusion Head(1)
//
//	rows:
//	{"id":1,"total":10}
//
// Rows appear one per line as compact JSON; a failed query shows its
// error instead.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n\n", name)
	fmt.Fprintf(&b, "plan:\n%s\n", result.Plan)
	fmt.Fprintf(&b, "optimized:\n%s\n", result.Optimized)

	b.WriteString("trace:\n")
	if len(result.Trace) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, s := range result.Trace {
		fmt.Fprintf(&b, "  %d %s %s\n", s.Iteration, s.Rule, s.Node)
	}

	if result.QueryError != "" {
		fmt.Fprintf(&b, "\nerror:\n%s\n", result.QueryError)
		return []byte(b.String())
	}
	b.WriteString("\nrows:\n")
	for _, row := range result.Rows {
		b.WriteString(render(row))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario could not run. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares result's snapshot against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
