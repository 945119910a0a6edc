package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
)

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Expr   string          `json:"expr"`
	Result json.RawMessage `json:"result"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <expr> [json-file]",
		Short: "Evaluate an expression against one document",
		Long: `Evaluate an expression against a JSON document and print the result.

The document is read from json-file, from stdin when json-file is "-",
and is the empty object {} when omitted.

Examples:
  treeq eval '1 + 2'
  treeq eval 'sum(items[*].price)' order.json
  cat order.json | treeq eval 'status == "open"' -`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return runEval(rootOpts, args[0], file, cmd)
		},
	}
	return cmd
}

func runEval(opts *RootOptions, source, file string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	e, err := expr.Parse(source)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "invalid expression", err)
	}
	doc, err := readDocument(cmd, file)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to read document", err)
	}

	result, err := evalExpr(opts.config().NewEvaluator(), e, doc)
	if err != nil {
		return out.Fail(ExitFailure, CodeQueryFailed, "evaluation failed", err)
	}
	return writeValue(out, cmd, e, result)
}

func evalExpr(ev *eval.Evaluator, e expr.Expr, doc ir.Result) (ir.Result, error) {
	return ev.EvalDoc(e, eval.FromResult(doc))
}

func writeValue(out *OutputFormatter, cmd *cobra.Command, e expr.Expr, result ir.Result) error {
	data, err := ir.MarshalResult(result)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode result", err)
	}
	if out.JSON() {
		return out.Success(EvalResult{Expr: e.String(), Result: data})
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// readDocument reads one JSON document from file, stdin ("-"), or returns
// the empty object when file is empty.
func readDocument(cmd *cobra.Command, file string) (ir.Result, error) {
	var data []byte
	var err error
	switch file {
	case "":
		return ir.NewObject(), nil
	case "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, err
	}
	return ir.ParseJSON(data)
}
