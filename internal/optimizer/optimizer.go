// Package optimizer rewrites query plans into cheaper equivalent plans.
//
// Each Rule is a pure function from a plan node to an optional
// replacement, documented by the algebraic law it applies. The Optimizer
// applies its rules to a fixpoint: every iteration rebuilds the plan
// bottom-up, replacing each node with the result of the first rule that
// matches it, until an iteration changes nothing or the iteration cap is
// reached.
//
// EQUIVALENCE:
//
// A rewrite must produce identical output on every input where the
// original plan succeeds. Where the original fails, the rewrite may fail
// too or may succeed because the failing computation became unreachable.
// A rewrite never fails on an input the original handled.
//
// DETERMINISM:
//
// Rules run in a fixed priority order and never consult anything but the
// plan, so the same plan always optimizes to the same plan with the same
// trace.
package optimizer

import (
	"log/slog"
	"slices"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/plan"
)

// DefaultMaxIterations caps the fixpoint loop.
const DefaultMaxIterations = 64

// Step records one rule firing.
type Step struct {
	Iteration int    `json:"iteration"`
	Rule      string `json:"rule"`
	Node      string `json:"node"` // label of the rewritten node
}

// Result is the outcome of Optimize.
type Result struct {
	Plan       plan.Plan
	Trace      []Step
	Iterations int
	Converged  bool // false when the iteration cap stopped the loop
}

// Optimizer applies a rule set to a fixpoint.
type Optimizer struct {
	rules         []Rule
	maxIterations int

	ev       *eval.Evaluator
	custom   bool
	disabled []string
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMaxIterations caps the number of rewrite passes.
func WithMaxIterations(n int) Option {
	return func(o *Optimizer) {
		o.maxIterations = n
	}
}

// WithEvaluator sets the evaluator the standard rules fold constants with.
func WithEvaluator(ev *eval.Evaluator) Option {
	return func(o *Optimizer) {
		o.ev = ev
	}
}

// WithDisabledRules removes rules by name.
func WithDisabledRules(names ...string) Option {
	return func(o *Optimizer) {
		o.disabled = append(o.disabled, names...)
	}
}

// WithRules replaces the rule set.
func WithRules(rules ...Rule) Option {
	return func(o *Optimizer) {
		o.rules = slices.Clone(rules)
		o.custom = true
	}
}

// New creates an Optimizer with the standard rules.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(o)
	}
	if !o.custom {
		if o.ev == nil {
			o.ev = eval.New()
		}
		o.rules = Rules(o.ev)
	}
	o.rules = slices.DeleteFunc(o.rules, func(r Rule) bool {
		return slices.Contains(o.disabled, r.Name)
	})
	return o
}

// RuleNames returns the active rules in priority order.
func (o *Optimizer) RuleNames() []string {
	names := make([]string, len(o.rules))
	for i, r := range o.rules {
		names[i] = r.Name
	}
	return names
}

// Optimize rewrites p to a fixpoint. p itself is never modified.
func (o *Optimizer) Optimize(p plan.Plan) Result {
	res := Result{Plan: p}
	if p == nil {
		res.Converged = true
		return res
	}
	for iter := 1; iter <= o.maxIterations; iter++ {
		fired := false
		res.Plan = plan.Transform(res.Plan, func(n plan.Plan) plan.Plan {
			for _, r := range o.rules {
				next, ok := r.Apply(n).Get()
				if !ok {
					continue
				}
				slog.Debug("optimizer rule fired",
					"rule", r.Name,
					"iteration", iter,
					"node", plan.Label(n),
				)
				res.Trace = append(res.Trace, Step{Iteration: iter, Rule: r.Name, Node: plan.Label(n)})
				fired = true
				return next
			}
			return n
		})
		res.Iterations = iter
		if !fired {
			res.Converged = true
			return res
		}
	}
	slog.Debug("optimizer stopped at iteration cap", "max_iterations", o.maxIterations)
	return res
}

// Optimize rewrites p with the standard rules and default settings.
func Optimize(p plan.Plan) plan.Plan {
	return New().Optimize(p).Plan
}
