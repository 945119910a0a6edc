package optimizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/exec"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/tree"
)

func explain(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func from() plan.Builder { return plan.From("t") }

func pipeline() plan.Plan {
	return plan.From("orders").
		Filter(expr.MustParse(`status == "open"`)).
		Explode(expr.P("items[*]"), "it").
		Filter(expr.MustParse("$it.qty > 0")).
		AddFields(plan.As("total", expr.MustParse("$it.qty * $it.price"))).
		Sort(plan.Desc(expr.P("total")), plan.Asc(expr.P("id"))).
		Head(10).
		Plan()
}

func TestOptimize_Pipeline(t *testing.T) {
	res := New().Optimize(pipeline())

	assert.Equal(t, explain(
		"TopK(10, total desc, id)",
		"└─ AddFields(total: $it.qty * $it.price)",
		"   └─ Filter($it.qty > 0)",
		"      └─ Explode(items[*] as $it)",
		"         └─ Filter(status == \"open\")",
		"            └─ Scan(orders)",
	), plan.Explain(res.Plan))
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []Step{{Iteration: 1, Rule: "TopKFusion", Node: "Head(10)"}}, res.Trace)
}

func TestOptimize_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   plan.Plan
		want string
	}{
		{
			"filter fusion with boolean-safe outer",
			from().Filter(expr.MustParse("a == 1")).Filter(expr.MustParse("b == 2")).Plan(),
			explain("Filter(a == 1 and b == 2)", "└─ Scan(t)"),
		},
		{
			"filter fusion guards fallible outer",
			from().Filter(expr.MustParse("a == 1")).Filter(expr.MustParse("b > 2")).Plan(),
			explain("Filter(coalesce(a == 1, false) and b > 2)", "└─ Scan(t)"),
		},
		{
			"filter fusion guards non-boolean outer",
			from().Filter(expr.MustParse("score > 5")).Filter(expr.P("flag")).Plan(),
			explain("Filter(coalesce(score > 5, false) and flag)", "└─ Scan(t)"),
		},
		{
			"filter fusion skips limited filters",
			from().FilterLimit(expr.MustParse("a == 1"), 3).Filter(expr.MustParse("b == 2")).Plan(),
			explain("Filter(b == 2)", "└─ Filter(a == 1, limit=3)", "   └─ Scan(t)"),
		},
		{
			"filter true disappears",
			from().Filter(expr.Bool(true)).Head(4).Plan(),
			explain("Head(4)", "└─ Scan(t)"),
		},
		{
			"filter true with limit becomes head",
			from().FilterLimit(expr.Bool(true), 3).Plan(),
			explain("Head(3)", "└─ Scan(t)"),
		},
		{
			"constant predicate folds away",
			from().Filter(expr.MustParse("1 + 1 == 2")).Plan(),
			explain("Scan(t)"),
		},
		{
			"false and short-circuits",
			from().Filter(expr.MustParse("false and 1 / 0 == 1")).Plan(),
			explain("Filter(false)", "└─ Scan(t)"),
		},
		{
			"true and keeps the other operand",
			from().Filter(expr.MustParse("true and a == 1")).Plan(),
			explain("Filter(a == 1)", "└─ Scan(t)"),
		},
		{
			"failing constants are kept",
			from().Filter(expr.MustParse("1 / 0 == 1 or a == 1")).Plan(),
			explain("Filter(1 / 0 == 1 or a == 1)", "└─ Scan(t)"),
		},
		{
			"constants fold inside projections",
			from().Select(plan.As("x", expr.MustParse("2 * 3 + a"))).Plan(),
			explain("Select(x: 6 + a)", "└─ Scan(t)"),
		},
		{
			"head head",
			from().Head(5).Head(3).Plan(),
			explain("Head(3)", "└─ Scan(t)"),
		},
		{
			"tail tail",
			from().Tail(2).Tail(4).Plan(),
			explain("Tail(2)", "└─ Scan(t)"),
		},
		{
			"head over topk",
			from().TopK(5, plan.Asc(expr.P("a"))).Head(2).Plan(),
			explain("TopK(2, a)", "└─ Scan(t)"),
		},
		{
			"limit pushdown",
			from().Filter(expr.MustParse("a == 1")).Head(5).Plan(),
			explain("Filter(a == 1, limit=5)", "└─ Scan(t)"),
		},
		{
			"limit pushdown merges limits",
			from().FilterLimit(expr.MustParse("a == 1"), 5).Head(3).Plan(),
			explain("Filter(a == 1, limit=3)", "└─ Scan(t)"),
		},
		{
			"limit pushdown stops at ordering",
			from().Shuffle(1).Filter(expr.MustParse("a == 1")).Head(2).Plan(),
			explain("Head(2)", "└─ Filter(a == 1)", "   └─ Shuffle(seed=1)", "      └─ Scan(t)"),
		},
		{
			"filter moves below sort then head fuses",
			from().Sort(plan.Asc(expr.P("a"))).Filter(expr.MustParse("b == 1")).Head(2).Plan(),
			explain("TopK(2, a)", "└─ Filter(b == 1)", "   └─ Scan(t)"),
		},
		{
			"sort fusion",
			from().Sort(plan.Asc(expr.P("a"))).Sort(plan.Desc(expr.P("b"))).Plan(),
			explain("Sort(b desc, a)", "└─ Scan(t)"),
		},
		{
			"explode pushdown",
			from().Explode(expr.P("items[*]"), "it").Filter(expr.MustParse(`status == "open"`)).Plan(),
			explain("Explode(items[*] as $it)", "└─ Filter(status == \"open\")", "   └─ Scan(t)"),
		},
		{
			"explode pushdown guards fallible predicates",
			from().Explode(expr.P("items[*]"), "it").Filter(expr.MustParse("n > 1")).Plan(),
			explain(
				"Explode(items[*] as $it)",
				"└─ Filter(not (is_array(items[*]) and len(items[*]) == 0) and n > 1)",
				"   └─ Scan(t)",
			),
		},
		{
			"explode pushdown guards non-boolean predicates",
			from().Explode(expr.P("items"), "x").Filter(expr.P("flag")).Plan(),
			explain(
				"Explode(items as $x)",
				"└─ Filter(not (is_array(items) and len(items) == 0) and flag)",
				"   └─ Scan(t)",
			),
		},
		{
			"explode keeps filters on its binding",
			from().Explode(expr.P("items[*]"), "it").Filter(expr.MustParse("$it.q > 1")).Plan(),
			explain("Filter($it.q > 1)", "└─ Explode(items[*] as $it)", "   └─ Scan(t)"),
		},
		{
			"add fields pushdown",
			from().AddFields(plan.As("x", expr.Int(1))).Filter(expr.MustParse("a == 1")).Plan(),
			explain("AddFields(x: 1)", "└─ Filter(a == 1)", "   └─ Scan(t)"),
		},
		{
			"add fields keeps filters on added names",
			from().AddFields(plan.As("x", expr.Int(1))).Filter(expr.MustParse("x == 1")).Plan(),
			explain("Filter(x == 1)", "└─ AddFields(x: 1)", "   └─ Scan(t)"),
		},
		{
			"append chain collapse",
			from().Append("tags", expr.Str("a")).Append("tags", expr.Str("b")).Plan(),
			explain(`Append(tags, ["a", "b"])`, "└─ Scan(t)"),
		},
		{
			"append chain reading the target stays",
			from().Append("tags", expr.Str("a")).Append("tags", expr.Fn(expr.FnLength, expr.P("tags"))).Plan(),
			explain("Append(tags, [len(tags)])", "└─ Append(tags, [\"a\"])", "   └─ Scan(t)"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Optimize(tt.in)
			assert.Equal(t, tt.want, plan.Explain(res.Plan))
			assert.True(t, res.Converged)
		})
	}
}

// Rows the original plan dropped before reaching a predicate must not
// reach it after a rewrite.
func TestOptimize_NonBooleanPredicates(t *testing.T) {
	docs, err := tree.ReadJSONL(strings.NewReader(
		`{"score":null,"flag":"yes","items":[]}` + "\n" + `{"score":10,"flag":true,"items":[1]}` + "\n"))
	require.NoError(t, err)
	x, err := exec.New(exec.MapCatalog{"t": docs})
	require.NoError(t, err)
	defer x.Close()

	plans := map[string]plan.Plan{
		"fusion":  from().Filter(expr.MustParse("score > 5")).Filter(expr.P("flag")).Plan(),
		"explode": from().Explode(expr.P("items"), "x").Filter(expr.P("flag")).Plan(),
	}
	for name, p := range plans {
		t.Run(name, func(t *testing.T) {
			want, err := collect(t, x, p)
			require.NoError(t, err)
			got, err := collect(t, x, Optimize(p))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestOptimize_DoesNotModifyInput(t *testing.T) {
	in := pipeline()
	before := plan.Explain(in)
	_ = Optimize(in)
	assert.Equal(t, before, plan.Explain(in))
}

func TestOptimize_Idempotent(t *testing.T) {
	plans := []plan.Plan{
		pipeline(),
		from().Explode(expr.P("items[*]"), "it").Filter(expr.MustParse("n > 1")).Plan(),
		from().Filter(expr.MustParse("a == 1")).Filter(expr.MustParse("b > 2")).Head(3).Plan(),
	}
	for _, p := range plans {
		once := New().Optimize(p)
		twice := New().Optimize(once.Plan)
		assert.True(t, plan.Equal(once.Plan, twice.Plan), plan.Explain(p))
		assert.Empty(t, twice.Trace)
		assert.Equal(t, 1, twice.Iterations)
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	a := New().Optimize(pipeline())
	b := New().Optimize(pipeline())
	assert.Equal(t, plan.Explain(a.Plan), plan.Explain(b.Plan))
	assert.Equal(t, a.Trace, b.Trace)
}

func TestOptimize_IterationCap(t *testing.T) {
	p := from().Filter(expr.MustParse("1 + 1 == 2")).Plan()

	res := New(WithMaxIterations(1)).Optimize(p)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, explain("Filter(true)", "└─ Scan(t)"), plan.Explain(res.Plan))

	res = New().Optimize(p)
	require.True(t, res.Converged)
	rules := make([]string, len(res.Trace))
	for i, s := range res.Trace {
		rules[i] = s.Rule
	}
	assert.Equal(t, []string{"ConstantFold", "FilterTrue"}, rules)
}

func TestOptimize_DisabledRules(t *testing.T) {
	o := New(WithDisabledRules("TopKFusion"))
	assert.NotContains(t, o.RuleNames(), "TopKFusion")
	assert.Len(t, o.RuleNames(), len(Rules(eval.New()))-1)

	res := o.Optimize(pipeline())
	assert.True(t, plan.Equal(pipeline(), res.Plan))
	assert.Empty(t, res.Trace)
}

func TestOptimize_CustomRules(t *testing.T) {
	o := New(WithRules(Rules(eval.New())[1]))
	assert.Equal(t, []string{"FilterTrue"}, o.RuleNames())

	res := o.Optimize(from().Filter(expr.MustParse("1 == 1")).Plan())
	assert.Equal(t, explain("Filter(1 == 1)", "└─ Scan(t)"), plan.Explain(res.Plan))
}

func TestOptimize_WithEvaluator(t *testing.T) {
	ev := eval.New(eval.WithRegexCacheSize(0))
	o := New(WithEvaluator(ev), WithDisabledRules("SortFusion"))
	assert.Same(t, ev, o.ev)
	assert.NotContains(t, o.RuleNames(), "SortFusion")

	res := o.Optimize(from().Filter(expr.MustParse(`regex_match("abc", "^a") and a == 1`)).Plan())
	assert.Equal(t, explain("Filter(a == 1)", "└─ Scan(t)"), plan.Explain(res.Plan))
}

func TestOptimize_Nil(t *testing.T) {
	res := New().Optimize(nil)
	assert.Nil(t, res.Plan)
	assert.True(t, res.Converged)
}

func TestRules_HaveLaws(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Rules(eval.New()) {
		assert.NotEmpty(t, r.Name)
		assert.NotEmpty(t, r.Law, r.Name)
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
	}
}

func TestFoldExpr(t *testing.T) {
	ev := eval.New()
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{`upper("ab")`, `"AB"`},
		{"a + 1", "a + 1"},
		{"false and a", "false"},
		{"a or true", "true"},
		{"when(true, a, b)", "a"},
		{"when(null, a)", "null"},
		{"coalesce(null, null, a)", "coalesce(a)"},
		{"coalesce(null, 3, a)", "3"},
		{"1 / 0", "1 / 0"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldExpr(ev, expr.MustParse(tt.src)).String())
		})
	}
}
