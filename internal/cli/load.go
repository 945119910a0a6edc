package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/treeq/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Schema  string
	Dedupe  bool
	Replace bool
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Collection string `json:"collection"`
	store.LoadStats
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <db> <collection> <jsonl-file>",
		Short: "Load JSONL documents into a SQLite store",
		Long: `Append the documents of a JSONL file to a collection, creating the store
and the collection as needed. The load is all-or-nothing.

With --schema, the collection's JSON Schema is replaced first and every
document must validate against it.

Examples:
  treeq load ./treeq.db orders orders.jsonl
  treeq load ./treeq.db orders orders.jsonl --schema order.schema.json
  treeq load ./treeq.db orders orders.jsonl --replace`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "JSON Schema file for the collection")
	cmd.Flags().BoolVar(&opts.Dedupe, "dedupe", false, "skip documents already in the collection")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "delete the collection's documents first")

	return cmd
}

func runLoad(opts *LoadOptions, dbPath, collection, file string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	loadOpts := store.LoadOptions{Dedupe: opts.Dedupe, Replace: opts.Replace}
	if opts.Schema != "" {
		schema, err := os.ReadFile(opts.Schema)
		if err != nil {
			return out.Fail(ExitCommandError, CodeInvalidInput, "failed to read schema", err)
		}
		loadOpts.Schema = schema
	}

	f, err := os.Open(file)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to open data file", err)
	}
	defer f.Close()

	st, err := store.Open(dbPath)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to open store", err)
	}
	defer st.Close()

	stats, err := st.Load(cmd.Context(), collection, f, loadOpts)
	if err != nil {
		return out.Fail(ExitFailure, CodeLoadFailed, "load failed", err)
	}

	if out.JSON() {
		return out.Success(LoadResult{Collection: collection, LoadStats: stats})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d documents into %s (%d skipped)\n", stats.Inserted, collection, stats.Skipped)
	return nil
}

// CollectionsOptions holds flags for the collections command.
type CollectionsOptions struct {
	*RootOptions
	Drop string
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collections <db>",
		Short: "List the collections of a SQLite store",
		Long: `List every collection of a store with its document count.

Examples:
  treeq collections ./treeq.db
  treeq collections ./treeq.db --drop orders`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Drop, "drop", "", "drop the named collection before listing")

	return cmd
}

func runCollections(opts *CollectionsOptions, dbPath string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if _, err := os.Stat(dbPath); err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "store not found", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "failed to open store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.Drop != "" {
		if err := st.Drop(ctx, opts.Drop); err != nil {
			return out.Fail(ExitFailure, CodeLoadFailed, "drop failed", err)
		}
	}
	infos, err := st.Collections(ctx)
	if err != nil {
		return out.Fail(ExitFailure, CodeLoadFailed, "failed to list collections", err)
	}

	if out.JSON() {
		return out.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No collections.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDOCUMENTS\tSCHEMA")
	for _, info := range infos {
		schema := "-"
		if info.HasSchema {
			schema = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Documents, schema)
	}
	return tw.Flush()
}
