package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/treeq/internal/compiler"
	"github.com/roach88/treeq/internal/optimizer"
	"github.com/roach88/treeq/internal/plan"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Name       string // query to explain when the file holds several
	NoOptimize bool
	Diff       bool
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Query      string           `json:"query"`
	Plan       string           `json:"plan"`
	Optimized  string           `json:"optimized,omitempty"`
	Diff       string           `json:"diff,omitempty"`
	Trace      []optimizer.Step `json:"trace,omitempty"`
	Iterations int              `json:"iterations,omitempty"`
	Converged  bool             `json:"converged,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query-file>",
		Short: "Show a query's plan before and after optimization",
		Long: `Compile a query file and print its logical plan, the optimized plan and
the optimizer rules that fired.

Examples:
  treeq explain top_orders.yaml
  treeq explain queries.cue --name open_orders --diff
  treeq explain top_orders.yaml --no-optimize`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "query to explain when the file holds several")
	cmd.Flags().BoolVar(&opts.NoOptimize, "no-optimize", false, "print only the unoptimized plan")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "print the optimized plan as a diff against the original")
	cmd.MarkFlagsMutuallyExclusive("no-optimize", "diff")

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	doc, p, err := compiler.CompileFile(path, opts.Name)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to compile query", err)
	}

	result := ExplainResult{Query: doc.Name, Plan: plan.Explain(p)}
	if opt := opts.config().NewOptimizer(); opt != nil && !opts.NoOptimize {
		res := opt.Optimize(p)
		result.Optimized = plan.Explain(res.Plan)
		result.Trace = res.Trace
		result.Iterations = res.Iterations
		result.Converged = res.Converged
		if opts.Diff {
			result.Diff = lineDiff(result.Plan, result.Optimized)
		}
	}

	if out.JSON() {
		return out.Success(result)
	}
	writeExplainText(cmd.OutOrStdout(), result)
	return nil
}

func writeExplainText(w io.Writer, r ExplainResult) {
	title := cases.Title(language.English)
	section := func(name, body string) {
		fmt.Fprintf(w, "%s:\n%s\n", title.String(name), body)
	}

	if r.Query != "" {
		fmt.Fprintf(w, "%s: %s\n\n", title.String("query"), r.Query)
	}
	switch {
	case r.Diff != "":
		section("plan diff", r.Diff)
	case r.Optimized != "":
		section("plan", r.Plan)
		section("optimized plan", r.Optimized)
	default:
		section("plan", r.Plan)
		return
	}

	if len(r.Trace) == 0 {
		fmt.Fprintln(w, "No rules applied.")
		return
	}
	fmt.Fprintf(w, "%s:\n", title.String("rules applied"))
	for _, s := range r.Trace {
		fmt.Fprintf(w, "  %d %s %s\n", s.Iteration, s.Rule, s.Node)
	}
	if !r.Converged {
		fmt.Fprintf(w, "Stopped after %d iterations without reaching a fixpoint.\n", r.Iterations)
	}
}
