package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/roach88/treeq/internal/compiler"
	"github.com/roach88/treeq/internal/config"
	"github.com/roach88/treeq/internal/exec"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/optimizer"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/qerror"
	"github.com/roach88/treeq/internal/store"
	"github.com/roach88/treeq/internal/tree"
)

// Harness runs scenarios with one engine configuration.
type Harness struct {
	cfg *config.Config
}

// New creates a Harness. A nil cfg uses config.Default().
func New(cfg *config.Config) *Harness {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Harness{cfg: cfg}
}

// Run executes a scenario with the default configuration.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the query and optimize it
// 2. Build the catalog (in memory, or a fresh in-memory SQLite store)
// 3. Run the optimized and the original plan
// 4. Check expectations, equivalence and assertions
//
// The returned error reports a scenario that could not be run at all;
// failed checks are recorded on the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	original, err := compiler.CompileDoc(scenario.Query)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	result := NewResult()
	result.Plan = plan.Explain(original)
	optimized := original
	if opt := h.cfg.NewOptimizer(); opt != nil {
		res := opt.Optimize(original)
		optimized = res.Plan
		result.Trace = append(result.Trace, res.Trace...)
	}
	result.Optimized = plan.Explain(optimized)

	cat, closeCatalog, err := h.catalog(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer closeCatalog()

	x, err := h.cfg.NewExecutor(cat)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}
	defer x.Close()

	rows, queryErr := x.Collect(ctx, optimized)
	if queryErr != nil {
		result.QueryError = queryErr.Error()
	} else {
		result.Rows = rows
	}

	checkExpect(scenario.Expect, rows, queryErr, result)
	h.checkEquivalence(ctx, x, original, rows, queryErr, result)
	if queryErr == nil {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
	} else if scenario.Expect == nil || scenario.Expect.Error == "" {
		result.AddError(fmt.Sprintf("query failed: %v", queryErr))
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"rows", len(result.Rows),
		"rules", len(result.Trace),
	)
	return result, nil
}

// catalog builds the scenario's collections.
func (h *Harness) catalog(ctx context.Context, s *Scenario) (exec.Catalog, func(), error) {
	sources, err := s.sources()
	if err != nil {
		return nil, nil, err
	}

	if s.Source != SourceSQLite {
		cat := exec.MapCatalog{}
		for _, src := range sources {
			c, err := tree.ReadJSONL(strings.NewReader(src.jsonl))
			if err != nil {
				return nil, nil, fmt.Errorf("collection %q: %w", src.name, err)
			}
			cat[src.name] = c
		}
		return cat, func() {}, nil
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	for _, src := range sources {
		if _, err := st.Load(ctx, src.name, strings.NewReader(src.jsonl), store.LoadOptions{}); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("collection %q: %w", src.name, err)
		}
	}
	return st, func() { st.Close() }, nil
}

type source struct {
	name  string
	jsonl string
}

// sources returns the scenario's collections sorted by name.
func (s *Scenario) sources() ([]source, error) {
	var out []source
	for name, jsonl := range s.Data {
		out = append(out, source{name: name, jsonl: jsonl})
	}
	for name, file := range s.DataFiles {
		data, err := os.ReadFile(s.resolve(file))
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		out = append(out, source{name: name, jsonl: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func checkExpect(expect *Expect, rows []ir.Result, queryErr error, result *Result) {
	if expect == nil {
		return
	}

	if expect.Error != "" {
		switch {
		case queryErr == nil:
			result.AddError(fmt.Sprintf("expected %s error, query returned %d rows", expect.Error, len(rows)))
		case !qerror.Is(queryErr, qerror.Kind(expect.Error)):
			result.AddError(fmt.Sprintf("expected %s error, got: %v", expect.Error, queryErr))
		}
		return
	}

	if queryErr != nil {
		return
	}
	want, err := ir.ParseJSON([]byte(expect.Rows))
	if err != nil {
		result.AddError(fmt.Sprintf("expect.rows: %v", err))
		return
	}
	if _, ok := want.(ir.Array); !ok {
		result.AddError("expect.rows must be a JSON array")
		return
	}
	got := ir.NewArray(rows...)
	if !ir.Equal(want, got) {
		result.AddError(fmt.Sprintf("rows mismatch\n  Expected: %s\n  Actual:   %s", render(want), render(got)))
	}
}

// checkEquivalence runs the unoptimized plan and requires identical rows
// whenever it succeeds.
func (h *Harness) checkEquivalence(ctx context.Context, x *exec.Executor, original plan.Plan, rows []ir.Result, queryErr error, result *Result) {
	if result.Plan == result.Optimized {
		return
	}
	want, err := x.Collect(ctx, original)
	if err != nil {
		return
	}
	if queryErr != nil {
		result.AddError(fmt.Sprintf("optimized plan failed where the original succeeded: %v", queryErr))
		return
	}
	if !ir.Equal(ir.NewArray(want...), ir.NewArray(rows...)) {
		result.AddError(fmt.Sprintf("optimized plan changed the output\n  Original:  %s\n  Optimized: %s",
			render(ir.NewArray(want...)), render(ir.NewArray(rows...))))
	}
}

// ruleFired reports whether trace contains rule.
func ruleFired(trace []optimizer.Step, rule string) bool {
	for _, s := range trace {
		if s.Rule == rule {
			return true
		}
	}
	return false
}

func render(r ir.Result) string {
	b, err := ir.MarshalResult(r)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
