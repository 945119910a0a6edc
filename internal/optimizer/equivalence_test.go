package optimizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/exec"
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/tree"
)

// randomDocs builds a collection mixing well-typed documents with ones
// that make comparisons or predicates fail.
func randomDocs(t *testing.T, rng *rand.Rand, n int) tree.Collection {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fields := []string{fmt.Sprintf(`"id":%d`, i)}
		switch rng.IntN(8) {
		case 0:
		case 1:
			fields = append(fields, `"a":"s"`)
		default:
			fields = append(fields, fmt.Sprintf(`"a":%d`, rng.IntN(5)))
		}
		fields = append(fields, fmt.Sprintf(`"b":%d`, rng.IntN(3)))
		switch rng.IntN(6) {
		case 0:
		case 1:
			fields = append(fields, `"items":"none"`)
		default:
			items := make([]string, rng.IntN(4))
			for j := range items {
				items[j] = fmt.Sprintf(`{"q":%d}`, rng.IntN(4))
			}
			fields = append(fields, `"items":[`+strings.Join(items, ",")+`]`)
		}
		if rng.IntN(2) == 0 {
			fields = append(fields, `"tags":["t"]`)
		}
		switch rng.IntN(4) {
		case 0:
		case 1:
			fields = append(fields, `"flag":"yes"`)
		default:
			fields = append(fields, fmt.Sprintf(`"flag":%t`, rng.IntN(2) == 0))
		}
		sb.WriteString("{" + strings.Join(fields, ",") + "}\n")
	}
	s, err := tree.ReadJSONL(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return s
}

func equivalencePlans() map[string]plan.Plan {
	t := func() plan.Builder { return plan.From("t") }
	return map[string]plan.Plan{
		"fusion": t().Filter(expr.MustParse("a > 1")).Filter(expr.MustParse("b == 2")).Plan(),
		"fusion fallible outer": t().
			Filter(expr.MustParse("b == 1")).Filter(expr.MustParse("a > 1")).Plan(),
		"explode vector": t().
			Explode(expr.P("items[*]"), "it").Filter(expr.MustParse("a > 1")).
			Select(plan.As("id", expr.P("id")), plan.As("q", expr.MustParse("$it.q"))).Plan(),
		"explode scalar": t().
			Explode(expr.P("items"), "it").Filter(expr.MustParse("b != 1")).
			Select(plan.As("id", expr.P("id")), plan.As("it", expr.Var("it"))).Plan(),
		"fusion non-boolean outer": t().
			Filter(expr.MustParse("a > 1")).Filter(expr.P("flag")).Plan(),
		"explode non-boolean predicate": t().
			Explode(expr.P("items"), "it").Filter(expr.P("flag")).
			Select(plan.As("id", expr.P("id"))).Plan(),
		"head min":  t().Head(7).Head(3).Plan(),
		"limit":     t().Filter(expr.MustParse("b == 1")).Head(4).Plan(),
		"limit erroring later rows": t().Filter(expr.MustParse("a > 1")).Head(2).Plan(),
		"sort then filter": t().
			Sort(plan.Asc(expr.P("a")), plan.Desc(expr.P("id"))).Filter(expr.MustParse("b == 0")).Head(5).Plan(),
		"add fields": t().
			AddFields(plan.As("c", expr.MustParse("b * 2"))).Filter(expr.MustParse("b < 2")).Plan(),
		"append chain": t().
			Append("tags", expr.Str("x")).Append("tags", expr.P("b")).Plan(),
		"constants": t().
			Filter(expr.MustParse("(1 < 2 or a > 100) and b >= 0")).Plan(),
	}
}

func collect(t *testing.T, x *exec.Executor, p plan.Plan) (string, error) {
	t.Helper()
	docs, err := x.Collect(context.Background(), p)
	if err != nil {
		return "", err
	}
	b, err := ir.MarshalResult(ir.NewArray(docs...))
	require.NoError(t, err)
	return string(b), nil
}

// Wherever the original plan succeeds the optimized plan must produce
// the same documents in the same order.
func TestOptimize_PreservesResults(t *testing.T) {
	plans := equivalencePlans()
	for seed := uint64(1); seed <= 40; seed++ {
		rng := rand.New(rand.NewPCG(seed, 99))
		x, err := exec.New(exec.MapCatalog{"t": randomDocs(t, rng, 1+rng.IntN(30))})
		require.NoError(t, err)

		for name, p := range plans {
			want, err := collect(t, x, p)
			if err != nil {
				continue
			}
			optimized := Optimize(p)
			got, err := collect(t, x, optimized)
			require.NoError(t, err, "seed %d %s\n%s", seed, name, plan.Explain(optimized))
			require.Equal(t, want, got, "seed %d %s\n%s", seed, name, plan.Explain(optimized))
		}
		require.NoError(t, x.Close())
	}
}

func TestOptimize_RewritesEquivalencePlans(t *testing.T) {
	for name, p := range equivalencePlans() {
		res := New().Optimize(p)
		require.True(t, res.Converged, name)
		require.NotEmpty(t, res.Trace, "%s: no rule fired\n%s", name, plan.Explain(p))
	}
}
