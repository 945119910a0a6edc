package exec

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/qerror"
	"github.com/roach88/treeq/internal/tree"
)

const ordersJSONL = `{"id":1,"status":"open","items":[{"sku":"a","qty":2,"price":5},{"sku":"b","qty":0,"price":3}]}
{"id":2,"status":"closed","items":[{"sku":"c","qty":1,"price":10}]}
{"id":3,"status":"open","items":[]}
{"id":4,"status":"open","items":[{"sku":"a","qty":3,"price":5}]}
`

func collection(t *testing.T, jsonl string) tree.Collection {
	t.Helper()
	s, err := tree.ReadJSONL(strings.NewReader(jsonl))
	require.NoError(t, err)
	return s
}

func newExecutor(t *testing.T, cat Catalog, opts ...ExecutorOption) *Executor {
	t.Helper()
	x, err := New(cat, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

// runOn executes p over a single collection named "docs" and returns the
// output as a JSON array.
func runOn(t *testing.T, jsonl string, p plan.Plan, opts ...ExecutorOption) (string, error) {
	t.Helper()
	x := newExecutor(t, MapCatalog{"docs": collection(t, jsonl)}, opts...)
	docs, err := x.Collect(context.Background(), p)
	if err != nil {
		return "", err
	}
	b, err := ir.MarshalResult(ir.NewArray(docs...))
	require.NoError(t, err)
	return string(b), nil
}

func mustRun(t *testing.T, jsonl string, p plan.Plan, opts ...ExecutorOption) string {
	t.Helper()
	out, err := runOn(t, jsonl, p, opts...)
	require.NoError(t, err)
	return out
}

func docs() plan.Builder { return plan.From("docs") }

func TestRun_Pipeline(t *testing.T) {
	p := docs().
		Filter(expr.MustParse(`status == "open"`)).
		Explode(expr.P("items[*]"), "it").
		Filter(expr.MustParse("$it.qty > 0")).
		AddFields(plan.As("total", expr.MustParse("$it.qty * $it.price"))).
		Sort(plan.Desc(expr.P("total")), plan.Asc(expr.P("id"))).
		Head(10).
		Select(
			plan.As("id", expr.P("id")),
			plan.As("sku", expr.MustParse("$it.sku")),
			plan.As("total", expr.P("total")),
		).
		Plan()

	got := mustRun(t, ordersJSONL, p)
	assert.JSONEq(t, `[{"id":4,"sku":"a","total":15},{"id":1,"sku":"a","total":10}]`, got)
}

func TestRun_Explode(t *testing.T) {
	const data = `{"id":1,"tags":["x","y"]}
{"id":2,"tags":[]}
{"id":3}
{"id":4,"tags":"solo"}
`
	project := []plan.NamedExpr{plan.As("id", expr.P("id")), plan.As("tag", expr.Var("t"))}

	t.Run("scalar path passes through non-arrays", func(t *testing.T) {
		p := docs().Explode(expr.P("tags"), "t").Select(project...).Plan()
		assert.JSONEq(t,
			`[{"id":1,"tag":"x"},{"id":1,"tag":"y"},{"id":3,"tag":null},{"id":4,"tag":"solo"}]`,
			mustRun(t, data, p))
	})

	t.Run("vector path drops missing", func(t *testing.T) {
		p := docs().Filter(expr.MustParse("id < 4")).Explode(expr.P("tags[*]"), "t").Select(project...).Plan()
		assert.JSONEq(t, `[{"id":1,"tag":"x"},{"id":1,"tag":"y"}]`, mustRun(t, data, p))
	})

	t.Run("document is unchanged", func(t *testing.T) {
		p := docs().Explode(expr.P("tags"), "t").Head(1).Plan()
		assert.JSONEq(t, `[{"id":1,"tags":["x","y"]}]`, mustRun(t, data, p))
	})
}

func TestRun_Filter(t *testing.T) {
	t.Run("null is false", func(t *testing.T) {
		p := docs().Filter(expr.P("flag")).Plan()
		got := mustRun(t, "{\"flag\":true}\n{\"flag\":null}\n{}\n{\"flag\":false}\n", p)
		assert.JSONEq(t, `[{"flag":true}]`, got)
	})

	t.Run("non-boolean is a type mismatch", func(t *testing.T) {
		_, err := runOn(t, `{"n":1}`, docs().Filter(expr.P("n")).Plan())
		require.Error(t, err)
		assert.True(t, qerror.Is(err, qerror.KindTypeMismatch), err.Error())
	})

	t.Run("limit stops before later rows", func(t *testing.T) {
		const data = "{\"n\":1}\n{\"n\":2}\n{\"n\":0}\n"
		pred := expr.MustParse("10 / n > 1")

		got := mustRun(t, data, docs().FilterLimit(pred, 2).Plan())
		assert.JSONEq(t, `[{"n":1},{"n":2}]`, got)

		_, err := runOn(t, data, docs().Filter(pred).Plan())
		require.Error(t, err)
		assert.True(t, qerror.Is(err, qerror.KindDivisionByZero), err.Error())
	})

	t.Run("zero limit", func(t *testing.T) {
		assert.JSONEq(t, `[]`, mustRun(t, ordersJSONL, docs().FilterLimit(expr.Bool(true), 0).Plan()))
	})
}

func numbered(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "{\"id\":%d}\n", i)
	}
	return sb.String()
}

func TestRun_Selection(t *testing.T) {
	data := numbered(5)
	tests := []struct {
		name string
		p    plan.Plan
		want string
	}{
		{"head", docs().Head(2).Plan(), `[{"id":1},{"id":2}]`},
		{"head beyond input", docs().Head(10).Plan(), `[{"id":1},{"id":2},{"id":3},{"id":4},{"id":5}]`},
		{"head zero", docs().Head(0).Plan(), `[]`},
		{"tail", docs().Tail(2).Plan(), `[{"id":4},{"id":5}]`},
		{"take", docs().Take(0, -1, 9, 2).Plan(), `[{"id":1},{"id":5},{"id":3}]`},
		{"take repeats", docs().Take(1, 1).Plan(), `[{"id":2},{"id":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, mustRun(t, data, tt.p))
		})
	}
}

func TestRun_SampleAndShuffleAreSeeded(t *testing.T) {
	data := numbered(20)

	sampled := mustRun(t, data, docs().Sample(5, 42).Plan())
	assert.Equal(t, sampled, mustRun(t, data, docs().Sample(5, 42).Plan()))

	x := newExecutor(t, MapCatalog{"docs": collection(t, data)})
	rows, err := x.Collect(context.Background(), docs().Sample(5, 42).Plan())
	require.NoError(t, err)
	require.Len(t, rows, 5)
	prev := int64(0)
	for _, r := range rows {
		id, _ := r.(ir.Object).Get("id")
		n := int64(id.(ir.Scalar).Value.(ir.Int))
		assert.Greater(t, n, prev, "sample keeps input order")
		prev = n
	}

	all, err := x.Collect(context.Background(), docs().Sample(50, 1).Plan())
	require.NoError(t, err)
	assert.Len(t, all, 20)

	shuffled, err := x.Collect(context.Background(), docs().Shuffle(7).Plan())
	require.NoError(t, err)
	original, err := x.Collect(context.Background(), docs().Plan())
	require.NoError(t, err)
	assert.ElementsMatch(t, original, shuffled)
	assert.Equal(t,
		mustRun(t, data, docs().Shuffle(7).Plan()),
		mustRun(t, data, docs().Shuffle(7).Plan()))
}

func TestRun_SortIsStable(t *testing.T) {
	const data = `{"id":1,"g":"b"}
{"id":2,"g":"a"}
{"id":3,"g":"b"}
{"id":4,"g":"a"}
{"id":5}
`
	ids := func(p plan.Plan) string {
		return mustRun(t, data, plan.On(p).Select(plan.As("id", expr.P("id"))).Plan())
	}

	assert.JSONEq(t, `[{"id":5},{"id":2},{"id":4},{"id":1},{"id":3}]`, ids(docs().Sort(plan.Asc(expr.P("g"))).Plan()))
	assert.JSONEq(t, `[{"id":1},{"id":3},{"id":2},{"id":4},{"id":5}]`, ids(docs().Sort(plan.Desc(expr.P("g"))).Plan()))
	assert.JSONEq(t, `[{"id":3},{"id":1}]`,
		ids(docs().TopK(2, plan.Desc(expr.P("g")), plan.Desc(expr.P("id"))).Plan()))
}

func TestRun_Grouping(t *testing.T) {
	const events = `{"kind":"a","amount":1}
{"kind":"b","amount":2}
{"kind":"a","amount":3}
{"kind":"a"}
`
	t.Run("group by", func(t *testing.T) {
		p := docs().GroupBy(
			[]plan.NamedExpr{plan.As("kind", expr.P("kind"))},
			plan.Agg("n", expr.FnCount, nil),
			plan.Agg("total", expr.FnSum, expr.P("amount")),
		).Plan()
		assert.JSONEq(t,
			`[{"kind":"a","n":3,"total":4},{"kind":"b","n":1,"total":2}]`,
			mustRun(t, events, p))
	})

	t.Run("aggregate over empty input", func(t *testing.T) {
		p := docs().Filter(expr.MustParse(`kind == "z"`)).Aggregate(
			plan.Agg("total", expr.FnSum, expr.P("amount")),
			plan.Agg("n", expr.FnCount, nil),
			plan.Agg("top", expr.FnMax, expr.P("amount")),
		).Plan()
		assert.JSONEq(t, `[{"total":0,"n":0,"top":null}]`, mustRun(t, events, p))
	})

	t.Run("aggregate flattens vector arguments", func(t *testing.T) {
		p := docs().Aggregate(plan.Agg("qty", expr.FnSum, expr.P("items[*].qty"))).Plan()
		assert.JSONEq(t, `[{"qty":6}]`, mustRun(t, ordersJSONL, p))
	})

	t.Run("index by keeps last", func(t *testing.T) {
		const data = "{\"id\":1,\"v\":\"x\"}\n{\"id\":2,\"v\":\"y\"}\n{\"id\":1,\"v\":\"z\"}\n"
		assert.JSONEq(t,
			`[{"1":{"id":1,"v":"z"},"2":{"id":2,"v":"y"}}]`,
			mustRun(t, data, docs().IndexBy(expr.P("id")).Plan()))
		assert.JSONEq(t,
			`[{"id":1,"v":"x"},{"id":2,"v":"y"}]`,
			mustRun(t, data, docs().UniqueBy(expr.P("id")).Plan()))
	})

	t.Run("index by over empty input", func(t *testing.T) {
		p := docs().Head(0).IndexBy(expr.P("id")).Plan()
		assert.JSONEq(t, `[{}]`, mustRun(t, ordersJSONL, p))
	})
}

func TestRun_Mutations(t *testing.T) {
	const doc = `{"id":1,"tags":["a"],"meta":{"x":1},"debug":true}`
	tests := []struct {
		name string
		p    plan.Plan
		want string
	}{
		{"set nested", docs().Set("meta.seen", expr.Bool(true)).Plan(),
			`[{"id":1,"tags":["a"],"meta":{"x":1,"seen":true},"debug":true}]`},
		{"set creates objects", docs().Set("deep.er", expr.Int(1)).Remove("tags").Remove("meta").Remove("debug").Plan(),
			`[{"id":1,"deep":{"er":1}}]`},
		{"set reads the row", docs().Set("copy", expr.P("id")).Remove("tags").Remove("meta").Remove("debug").Plan(),
			`[{"id":1,"copy":1}]`},
		{"append", docs().Append("tags", expr.Str("b"), expr.Str("c")).Plan(),
			`[{"id":1,"tags":["a","b","c"],"meta":{"x":1},"debug":true}]`},
		{"append to absent", docs().Append("fresh", expr.Int(1)).Remove("tags").Remove("meta").Remove("debug").Plan(),
			`[{"id":1,"fresh":[1]}]`},
		{"insert front", docs().Insert("tags", 0, expr.Str("first")).Plan(),
			`[{"id":1,"tags":["first","a"],"meta":{"x":1},"debug":true}]`},
		{"insert negative", docs().Insert("tags", -1, expr.Str("z")).Plan(),
			`[{"id":1,"tags":["z","a"],"meta":{"x":1},"debug":true}]`},
		{"insert past end", docs().Insert("tags", 9, expr.Str("z")).Plan(),
			`[{"id":1,"tags":["a","z"],"meta":{"x":1},"debug":true}]`},
		{"remove", docs().Remove("debug").Remove("meta.x").Plan(),
			`[{"id":1,"tags":["a"],"meta":{}}]`},
		{"remove absent", docs().Remove("nope.deeper").Plan(),
			`[{"id":1,"tags":["a"],"meta":{"x":1},"debug":true}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, mustRun(t, doc, tt.p))
		})
	}
}

func TestRun_MutationErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		p    plan.Plan
	}{
		{"append to scalar", `{"id":1}`, docs().Append("id", expr.Int(1)).Plan()},
		{"set through scalar", `{"id":1}`, docs().Set("id.x", expr.Int(1)).Plan()},
		{"set on non-object", `5`, docs().Set("x", expr.Int(1)).Plan()},
		{"add fields to array", `[1,2]`, docs().AddFields(plan.As("x", expr.Int(1))).Plan()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runOn(t, tt.data, tt.p)
			require.Error(t, err)
			assert.True(t, qerror.Is(err, qerror.KindTypeMismatch), err.Error())
		})
	}
}

func TestRun_AddFieldsSeesInputDocument(t *testing.T) {
	p := docs().AddFields(
		plan.As("a", expr.Int(2)),
		plan.As("b", expr.MustParse("a + 1")),
	).Plan()
	assert.JSONEq(t, `[{"a":2,"b":2}]`, mustRun(t, `{"a":1}`, p))
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "{\"id\":%d,\"n\":%d}\n", i, i%7)
	}
	data := sb.String()
	p := docs().
		Filter(expr.MustParse("n > 2")).
		AddFields(plan.As("sq", expr.MustParse("n * n"))).
		Select(plan.As("id", expr.P("id")), plan.As("sq", expr.P("sq"))).
		Plan()

	seq := mustRun(t, data, p)
	par := mustRun(t, data, p, WithParallelism(4))
	assert.Equal(t, seq, par)
}

func TestRun_ParallelReportsLowestFailingRow(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		s := "1"
		switch i {
		case 100:
			s = `"x"`
		case 300:
			s = "true"
		}
		fmt.Fprintf(&sb, "{\"id\":%d,\"s\":%s}\n", i, s)
	}
	p := docs().Filter(expr.MustParse("id + s > 0")).Plan()

	for _, workers := range []int{1, 4} {
		_, err := runOn(t, sb.String(), p, WithParallelism(workers))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "int and string", "workers=%d", workers)
	}
}

func TestRun_RowQuota(t *testing.T) {
	p := docs().Explode(expr.P("items[*]"), "it").Plan()

	_, err := runOn(t, ordersJSONL, p, WithMaxRows(2))
	require.Error(t, err)
	assert.True(t, IsRowsExceededError(err))

	_, err = runOn(t, ordersJSONL, p, WithMaxRows(0))
	assert.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	t.Run("unknown collection", func(t *testing.T) {
		x := newExecutor(t, MapCatalog{})
		_, err := x.Run(context.Background(), plan.From("nope").Plan())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown collection "nope"`)
	})

	t.Run("invalid plan", func(t *testing.T) {
		_, err := runOn(t, ordersJSONL, docs().Head(-1).Plan())
		require.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		x := newExecutor(t, MapCatalog{"docs": collection(t, ordersJSONL)})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := x.Run(ctx, docs().Head(1).Plan())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("error names the operator", func(t *testing.T) {
		_, err := runOn(t, `{"n":0}`, docs().Select(plan.As("r", expr.MustParse("1 / n"))).Plan())
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "Select("), err.Error())
	})
}

type hintCatalog struct {
	MapCatalog
	hints []string
}

func (c *hintCatalog) Collection(ctx context.Context, name string, hint expr.Expr) (tree.Collection, error) {
	if hint != nil {
		c.hints = append(c.hints, hint.String())
	}
	return c.MapCatalog.Collection(ctx, name, hint)
}

func TestRun_ScanReceivesFilterHint(t *testing.T) {
	cat := &hintCatalog{MapCatalog: MapCatalog{"docs": collection(t, ordersJSONL)}}
	x := newExecutor(t, cat)

	_, err := x.Run(context.Background(), docs().Filter(expr.MustParse(`status == "open"`)).Head(1).Plan())
	require.NoError(t, err)
	_, err = x.Run(context.Background(), docs().Head(1).Filter(expr.MustParse("id > 0")).Plan())
	require.NoError(t, err)

	assert.Equal(t, []string{`status == "open"`}, cat.hints)
}
