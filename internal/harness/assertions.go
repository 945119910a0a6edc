package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Rows     []ir.Result // Full output for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nOutput:\n")
	for i, row := range e.Rows {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, render(row))
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRowCount:
			err = assertRowCount(result.Rows, a)
		case AssertContains:
			err = assertContains(result.Rows, a)
		case AssertOrderedBy:
			err = assertOrderedBy(result.Rows, a)
		case AssertRuleFired:
			err = assertRuleFired(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertRowCount checks the output has exactly the expected number of rows.
func assertRowCount(rows []ir.Result, a Assertion) error {
	if len(rows) != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows", a.Count),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
			Rows:     rows,
		}
	}
	return nil
}

// assertContains checks some row holds every field of a.Row (subset match).
func assertContains(rows []ir.Result, a Assertion) error {
	want, err := ir.ParseJSON([]byte(a.Row))
	if err != nil {
		return fmt.Errorf("row: %w", err)
	}
	for _, row := range rows {
		if matchSubset(row, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("a row containing %s", render(want)),
		Actual:   "not found in output",
		Rows:     rows,
	}
}

// matchSubset reports whether got contains want: objects match when every
// field of want matches the same field of got, anything else must be equal.
func matchSubset(got, want ir.Result) bool {
	wo, ok := want.(ir.Object)
	if !ok {
		return ir.Equal(got, want)
	}
	obj, ok := got.(ir.Object)
	if !ok {
		return false
	}
	for _, f := range wo.Fields {
		v, found := obj.Get(f.Name)
		if !found || !matchSubset(v, f.Value) {
			return false
		}
	}
	return true
}

// assertOrderedBy checks adjacent rows are in key order under the total
// order used by Sort.
func assertOrderedBy(rows []ir.Result, a Assertion) error {
	key, err := expr.Parse(a.Key)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	ev := eval.New()
	keys := make([]ir.Result, len(rows))
	for i, row := range rows {
		k, err := ev.EvalDoc(key, eval.FromResult(row))
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		keys[i] = k
	}
	for i := 1; i < len(keys); i++ {
		c := ir.TotalCompare(keys[i-1], keys[i])
		if a.Desc {
			c = -c
		}
		if c > 0 {
			dir := "ascending"
			if a.Desc {
				dir = "descending"
			}
			return &AssertionError{
				Type:     AssertOrderedBy,
				Expected: fmt.Sprintf("rows %s by %s", dir, key),
				Actual: fmt.Sprintf("row %d (%s) before row %d (%s)",
					i-1, render(keys[i-1]), i, render(keys[i])),
				Rows: rows,
			}
		}
	}
	return nil
}

// assertRuleFired checks the optimizer applied a.Rule.
func assertRuleFired(result *Result, a Assertion) error {
	if ruleFired(result.Trace, a.Rule) {
		return nil
	}
	fired := make([]string, len(result.Trace))
	for i, s := range result.Trace {
		fired[i] = s.Rule
	}
	return &AssertionError{
		Type:     AssertRuleFired,
		Expected: fmt.Sprintf("rule %s applied", a.Rule),
		Actual:   fmt.Sprintf("applied: [%s]", strings.Join(fired, ", ")),
		Rows:     result.Rows,
	}
}
