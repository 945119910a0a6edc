package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/qerror"
)

const everyStepYAML = `
name: every_step
from: orders
pipeline:
  - filter: status == "open"
    limit: 100
  - explode: {path: "items[*]", as: it}
  - add_fields:
      - {name: sku, expr: $it.sku}
  - set: {path: meta.seen, value: "true"}
  - append: {path: tags, values: ['"x"', '"y"']}
  - insert: {path: tags, index: -1, value: '"last"'}
  - remove: internal
  - sort: [{key: sku}, {key: id, desc: true}]
  - take: [0, 2, -1]
  - sample: {n: 5, seed: 7}
  - shuffle: {seed: 3}
  - head: 20
  - tail: 10
  - topk: {k: 3, by: [{key: id}]}
  - unique_by: sku
  - group_by:
      keys: [{name: sku, expr: sku}]
      aggs: [{name: n, fn: count}, {name: top, fn: max, arg: id}]
  - index_by: sku
  - aggregate: [{name: groups, fn: count}]
`

func TestCompileDoc_EveryStep(t *testing.T) {
	doc, err := ParseYAML([]byte(everyStepYAML))
	require.NoError(t, err)
	assert.Equal(t, "every_step", doc.Name)

	got, err := CompileDoc(doc)
	require.NoError(t, err)

	want := plan.From("orders").
		FilterLimit(expr.MustParse(`status == "open"`), 100).
		Explode(expr.MustParse("items[*]"), "it").
		AddFields(plan.As("sku", expr.MustParse("$it.sku"))).
		Set("meta.seen", expr.Bool(true)).
		Append("tags", expr.Str("x"), expr.Str("y")).
		Insert("tags", -1, expr.Str("last")).
		Remove("internal").
		Sort(plan.Asc(expr.P("sku")), plan.Desc(expr.P("id"))).
		Take(0, 2, -1).
		Sample(5, 7).
		Shuffle(3).
		Head(20).
		Tail(10).
		TopK(3, plan.Asc(expr.P("id"))).
		UniqueBy(expr.P("sku")).
		GroupBy([]plan.NamedExpr{plan.As("sku", expr.P("sku"))},
			plan.Agg("n", expr.FnCount, nil),
			plan.Agg("top", expr.FnMax, expr.P("id"))).
		IndexBy(expr.P("sku")).
		Aggregate(plan.Agg("groups", expr.FnCount, nil)).
		Plan()

	assert.Equal(t, plan.Explain(want), plan.Explain(got))
}

func TestCompileDoc_Errors(t *testing.T) {
	head := 3
	negative := -1
	bad := "a +"
	pred := "a > 1"

	tests := []struct {
		name  string
		doc   QueryDoc
		field string
	}{
		{
			name:  "missing source",
			doc:   QueryDoc{Pipeline: []Step{{Head: &head}}},
			field: "from",
		},
		{
			name:  "empty step",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Head: &head}, {}}},
			field: "pipeline[1]",
		},
		{
			name:  "two operators",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Head: &head, Tail: &head}}},
			field: "pipeline[0]",
		},
		{
			name:  "limit without filter",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Head: &head, Limit: &head}}},
			field: "pipeline[0].limit",
		},
		{
			name:  "bad expression",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Filter: &bad}}},
			field: "pipeline[0].filter",
		},
		{
			name: "bad sort key",
			doc: QueryDoc{From: "c", Pipeline: []Step{
				{Filter: &pred},
				{Sort: []SortKey{{Key: "a"}, {Key: bad}}},
			}},
			field: "pipeline[1].sort[1].key",
		},
		{
			name:  "not an aggregate",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Aggregate: []Agg{{Name: "x", Fn: "lower", Arg: "a"}}}}},
			field: "pipeline[0].aggregate[0].fn",
		},
		{
			name:  "plan validation",
			doc:   QueryDoc{From: "c", Pipeline: []Step{{Head: &negative}}},
			field: "pipeline",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDoc(tt.doc)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileDoc_ParseErrorKeepsKind(t *testing.T) {
	src := "a +"
	_, err := CompileDoc(QueryDoc{From: "c", Pipeline: []Step{{Filter: &src}}})
	require.Error(t, err)
	assert.True(t, qerror.Is(err, qerror.KindPathParse), "got %v", err)
}

func TestCompileDoc_UnboundVariable(t *testing.T) {
	src := "$it.qty > 0"
	_, err := CompileDoc(QueryDoc{From: "c", Pipeline: []Step{{Filter: &src}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$it")
}

func TestParseYAML(t *testing.T) {
	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := ParseYAML([]byte("from: c\npipeline:\n  - head: 1\n    heads: 2\n"))
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := ParseYAML(nil)
		require.Error(t, err)
		var ce *CompileError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("empty pipeline scans the collection", func(t *testing.T) {
		doc, err := ParseYAML([]byte("from: orders\n"))
		require.NoError(t, err)
		p, err := CompileDoc(doc)
		require.NoError(t, err)
		assert.Equal(t, plan.Scan{Collection: "orders"}, p)
	})
}
