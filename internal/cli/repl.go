package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
)

const (
	replPrompt      = "treeq> "
	replHistoryFile = ".treeq_history"
)

const replHelp = `Enter an expression to evaluate it against the current document.

  :load <file>   read the current document from a JSON file
  :doc           print the current document
  :help          show this help
  :quit          exit (also Ctrl-D)`

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl [json-file]",
		Short: "Evaluate expressions interactively",
		Long: `Start an interactive prompt that evaluates expressions against a JSON
document, the empty object {} unless json-file is given.

` + replHelp,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runRepl(rootOpts, file, cmd)
		},
	}
	return cmd
}

func runRepl(opts *RootOptions, file string, cmd *cobra.Command) error {
	r := &repl{ev: opts.config().NewEvaluator(), doc: ir.NewObject(), w: cmd.OutOrStdout()}
	if file != "" {
		if err := r.load(file); err != nil {
			return WrapExitError(ExitCommandError, "failed to read document", err)
		}
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, replHistoryFile)
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	for {
		input, err := line.Prompt(replPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			break
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read input", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if r.handle(input) {
			break
		}
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// repl evaluates input lines against a current document.
type repl struct {
	ev  *eval.Evaluator
	doc ir.Result
	w   io.Writer
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	if strings.HasPrefix(input, ":") {
		command, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case ":quit", ":q":
			return true
		case ":help":
			fmt.Fprintln(r.w, replHelp)
		case ":doc":
			r.print(r.doc)
		case ":load":
			if arg == "" {
				fmt.Fprintln(r.w, "usage: :load <file>")
				return false
			}
			if err := r.load(arg); err != nil {
				fmt.Fprintf(r.w, "error: %v\n", err)
			}
		default:
			fmt.Fprintf(r.w, "unknown command %s (try :help)\n", command)
		}
		return false
	}

	e, err := expr.Parse(input)
	if err != nil {
		fmt.Fprintf(r.w, "error: %v\n", err)
		return false
	}
	result, err := evalExpr(r.ev, e, r.doc)
	if err != nil {
		fmt.Fprintf(r.w, "error: %v\n", err)
		return false
	}
	r.print(result)
	return false
}

func (r *repl) load(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	doc, err := ir.ParseJSON(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	r.doc = doc
	return nil
}

func (r *repl) print(v ir.Result) {
	data, err := ir.MarshalResult(v)
	if err != nil {
		fmt.Fprintf(r.w, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.w, string(data))
}
