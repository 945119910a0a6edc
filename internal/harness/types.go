package harness

import (
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/optimizer"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Plan and Optimized are plan.Explain renderings.
	Plan      string `json:"plan"`
	Optimized string `json:"optimized"`

	// Trace lists the optimizer's rule firings.
	Trace []optimizer.Step `json:"trace"`

	// Rows is the optimized plan's output. Nil when the query failed.
	Rows []ir.Result `json:"rows"`

	// QueryError is the query's failure, if any.
	QueryError string `json:"query_error,omitempty"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []optimizer.Step{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
