package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/treeq/internal/compiler"
	"github.com/roach88/treeq/internal/exec"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/store"
	"github.com/roach88/treeq/internal/tree"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Name       string
	Data       []string // name=path pairs
	Database   string
	NoOptimize bool
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Query string      `json:"query"`
	Rows  []ir.Result `json:"rows"`
	Count int         `json:"count"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query-file>",
		Short: "Execute a query",
		Long: `Compile, optimize and execute a query, printing one JSON row per line.

Collections come either from files given with --data (JSONL, or a JSON
array for .json files) or from a SQLite store given with --db.

Examples:
  treeq run top_orders.yaml --data orders=orders.jsonl
  treeq run queries.cue --name open_orders --db ./treeq.db
  treeq run top_orders.yaml --data orders=orders.jsonl --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "query to run when the file holds several")
	cmd.Flags().StringArrayVar(&opts.Data, "data", nil, "collection data as name=path (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a SQLite store")
	cmd.Flags().BoolVar(&opts.NoOptimize, "no-optimize", false, "execute the plan as compiled")
	cmd.MarkFlagsMutuallyExclusive("data", "db")
	cmd.MarkFlagsOneRequired("data", "db")

	return cmd
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg := opts.config()

	doc, p, err := compiler.CompileFile(path, opts.Name)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to compile query", err)
	}
	if opt := cfg.NewOptimizer(); opt != nil && !opts.NoOptimize {
		res := opt.Optimize(p)
		p = res.Plan
		slog.Debug("query optimized", "query", doc.Name, "rules", len(res.Trace), "iterations", res.Iterations)
	}

	cat, closeCatalog, err := opts.catalog()
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to open data", err)
	}
	defer closeCatalog()

	x, err := cfg.NewExecutor(cat)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to create executor", err)
	}
	defer x.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rows, err := x.Collect(ctx, p)
	if err != nil {
		return out.Fail(ExitFailure, CodeQueryFailed, "query failed", err)
	}
	slog.Info("query finished", "query", doc.Name, "rows", len(rows), "elapsed", time.Since(start))

	if out.JSON() {
		if rows == nil {
			rows = []ir.Result{}
		}
		return out.Success(RunResult{Query: doc.Name, Rows: rows, Count: len(rows)})
	}
	return writeRows(cmd, rows)
}

// catalog opens the collections named by --data or --db.
func (o *RunOptions) catalog() (exec.Catalog, func(), error) {
	if o.Database != "" {
		if _, err := os.Stat(o.Database); err != nil {
			return nil, nil, fmt.Errorf("store not found: %w", err)
		}
		st, err := store.Open(o.Database)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				slog.Error("error closing store", "error", err)
			}
		}, nil
	}

	cat := exec.MapCatalog{}
	for _, spec := range o.Data {
		name, file, ok := strings.Cut(spec, "=")
		if !ok || name == "" || file == "" {
			return nil, nil, fmt.Errorf("--data %q: want name=path", spec)
		}
		if _, dup := cat[name]; dup {
			return nil, nil, fmt.Errorf("--data: collection %q given twice", name)
		}
		c, err := readCollection(file)
		if err != nil {
			return nil, nil, fmt.Errorf("collection %q: %w", name, err)
		}
		cat[name] = c
	}
	return cat, func() {}, nil
}

// readCollection reads a JSON file (array or concatenated documents) or,
// for any other extension, a JSONL file.
func readCollection(path string) (tree.Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return tree.ReadJSON(f)
	}
	return tree.ReadJSONL(f)
}

func writeRows(cmd *cobra.Command, rows []ir.Result) error {
	w := cmd.OutOrStdout()
	for _, row := range rows {
		data, err := ir.MarshalResult(row)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode row", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}
