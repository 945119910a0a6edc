package logical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/qerror"
)

func TestInfer_Shapes(t *testing.T) {
	tests := []struct {
		in    string
		shape string
		card  Cardinality
	}{
		{`1`, "Scalar(Int)", CardScalar},
		{`1.5`, "Scalar(Float)", CardScalar},
		{`"x"`, "Scalar(String)", CardScalar},
		{`null`, "Scalar(Null)", CardScalar},
		{`price`, "Scalar(Any)", CardScalar},
		{`items[*].price`, "List(Scalar(Any))", CardVector},
		{`items[?@.active]`, "List(Scalar(Any))", CardVector},
		{`items[-1]`, "Scalar(Any)", CardScalar},
		{`1 + 2`, "Scalar(Int)", CardScalar},
		{`1 + 2.0`, "Scalar(Float)", CardScalar},
		{`6 / 3`, "Scalar(Number)", CardScalar},
		{`items[*].price * 2`, "List(Scalar(Any))", CardVector},
		{`items[*].price > 2`, "List(Scalar(Bool))", CardVector},
		{`sum(items[*].b)`, "Scalar(Any)", CardScalar},
		{`sum([1, 2])`, "Scalar(Int)", CardScalar},
		{`count(items[*])`, "Scalar(Int)", CardScalar},
		{`mean(items[*].b)`, "Scalar(Float)", CardScalar},
		{`any(items[*].b > 1)`, "Scalar(Bool)", CardScalar},
		{`lower(name)`, "Scalar(String)", CardScalar},
		{`lower(items[*].name)`, "List(Scalar(String))", CardVector},
		{`split(name, ",")`, "List(Scalar(String))", CardVector},
		{`join(tags[*], ",")`, "Scalar(String)", CardScalar},
		{`is_int(items[*])`, "Scalar(Bool)", CardScalar},
		{`type_of(x)`, "Scalar(String)", CardScalar},
		{`[1, 2.5]`, "List(Scalar(Number))", CardVector},
		{`[1, null]`, "List(Scalar(Int))", CardVector},
		{`{"a": 1, "b": items[*]}`, "Struct{a: Scalar(Int), b: List(Scalar(Any))}", CardScalar},
		{`field({"a": 1}, "a")`, "Scalar(Int)", CardScalar},
		{`coalesce(a, 0)`, "Scalar(Any)", CardScalar},
		{`coalesce(null, 0)`, "Scalar(Int)", CardScalar},
		{`when(a == 1, "x", "y")`, "Scalar(String)", CardScalar},
		{`when(a == 1, "x")`, "Scalar(String)", CardScalar},
		{`case(a, 1, b, 2.0, 3)`, "Scalar(Number)", CardScalar},
		{`cast(x, "int")`, "Scalar(Int)", CardScalar},
		{`cast(items[*].x, "string")`, "List(Scalar(String))", CardVector},
		{`filter(items, it, $it.p > 1)`, "List(Scalar(Any))", CardVector},
		{`map([1, 2], v, $v * 2.0)`, "List(Scalar(Any))", CardVector},
		{`let(x, 2, $x)`, "Scalar(Any)", CardScalar},
		{`date("2024-01-01") + duration("24h")`, "Scalar(Date)", CardScalar},
		{`datetime("2024-01-01T00:00:00Z") - datetime("2024-01-01T00:00:00Z")`, "Scalar(Duration)", CardScalar},
		{`-items[*].x`, "List(Scalar(Any))", CardVector},
		{`keys(obj)`, "List(Scalar(String))", CardVector},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			info, err := Infer(expr.MustParse(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, info.Shape.String())
			assert.Equal(t, tt.card, info.Card)
		})
	}
}

func TestInfer_CardinalityAgreesWithSyntax(t *testing.T) {
	for _, src := range []string{
		"a", "a[*]", "a[*].b + 1", "sum(a[*])", "lower(a[*].s)", "split(s, \",\")",
		"[1]", "{\"a\": a[*]}", "filter(a, x, true)", "is_null(a[*])", "-a[*].b",
	} {
		e := expr.MustParse(src)
		info, err := Infer(e)
		require.NoError(t, err, src)
		assert.Equal(t, expr.IsVector(e), info.Card == CardVector, src)
	}
}

func TestInfer_Errors(t *testing.T) {
	tests := []struct {
		in   string
		kind qerror.Kind
	}{
		{`"a" + 1`, qerror.KindTypeMismatch},
		{`"a" < 1`, qerror.KindTypeMismatch},
		{`true * 2`, qerror.KindTypeMismatch},
		{`-"x"`, qerror.KindTypeMismatch},
		{`lower(1)`, qerror.KindTypeMismatch},
		{`sum(["a"])`, qerror.KindTypeMismatch},
		{`any([1, 2])`, qerror.KindTypeMismatch},
		{`1 and true`, qerror.KindTypeMismatch},
		{`items[*].b > 1 and ok`, qerror.KindCardinality},
		{`not items[*].ok`, qerror.KindCardinality},
		{`when(items[*].ok, 1, 2)`, qerror.KindCardinality},
		{`items[?@.tags[*] == "x"]`, qerror.KindCardinality},
		{`filter(items, it, $it.xs[*])`, qerror.KindCardinality},
		{`{"a": 1} + 1`, qerror.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Infer(expr.MustParse(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.kind, qerror.KindOf(err), "got %v", err)
		})
	}
}

func TestValidatePredicate(t *testing.T) {
	ok := []string{
		`price > 10`,
		`active`,
		`null`,
		`any(items[*].price > 10)`,
		`is_null(owner) or owner.id == 3`,
		`$flag`,
	}
	for _, src := range ok {
		assert.NoError(t, ValidatePredicate(expr.MustParse(src)), src)
	}

	err := ValidatePredicate(expr.MustParse(`items[*].price > 10`))
	require.Error(t, err)
	var qe *qerror.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerror.KindCardinality, qe.Kind)
	assert.Equal(t, "items[*].price", qe.Path)
	assert.Contains(t, qe.Hint, "any(")

	err = ValidatePredicate(expr.MustParse(`price + 1`))
	require.Error(t, err)
	assert.True(t, qerror.Is(err, qerror.KindCardinality))

	err = ValidatePredicate(expr.MustParse(`{"a": true}`))
	assert.True(t, qerror.Is(err, qerror.KindCardinality))
}

func TestValidateScalar(t *testing.T) {
	assert.NoError(t, ValidateScalar(expr.MustParse("a.b")))
	assert.NoError(t, ValidateScalar(expr.MustParse("sum(a[*])")))
	err := ValidateScalar(expr.MustParse("a[*].b"))
	assert.True(t, qerror.Is(err, qerror.KindCardinality))
}

func TestBuild_DeduplicatesSubtrees(t *testing.T) {
	e := expr.MustParse("(a + 1) * (a + 1) + a")
	p := Build(e)
	// a, 1, a + 1, (a + 1) * (a + 1), root
	assert.Equal(t, 5, p.Len())

	id, ok := p.Lookup(expr.MustParse("a + 1"))
	require.True(t, ok)
	n := p.Node(id)
	assert.True(t, n.Shape.IsNone(), "slots are empty before inference")

	require.NoError(t, p.Infer())
	n = p.Node(id)
	assert.Equal(t, "Scalar(Number)", n.Shape.Unwrap().String())
	assert.Equal(t, CardScalar, n.Card.Unwrap())

	root := p.Node(p.Root())
	assert.Len(t, root.Kids, 2)
	for _, k := range root.Kids {
		assert.Less(t, k, p.Root(), "children precede parents")
	}
}

func TestBuild_PathFilterPredicatesAreChildren(t *testing.T) {
	p := Build(expr.MustParse(`items[?@.qty > 1].sku`))
	root := p.Node(p.Root())
	require.Len(t, root.Kids, 1)
	assert.Equal(t, "@.qty > 1", p.Node(root.Kids[0]).Expr.String())
}

func TestUnify(t *testing.T) {
	assert.Equal(t, "Scalar(Int)", Unify(ScalarShape{TypeInt}, ScalarShape{TypeNull}).String())
	assert.Equal(t, "Scalar(Number)", Unify(ScalarShape{TypeInt}, ScalarShape{TypeFloat}).String())
	assert.Equal(t, "Scalar(Any)", Unify(ScalarShape{TypeInt}, ScalarShape{TypeString}).String())
	assert.Equal(t, "List(Scalar(Any))", Unify(AnyList, ListShape{ScalarShape{TypeInt}}).String())
	assert.Equal(t, "Unknown", Unify(AnyList, AnyScalar).String())
	assert.Equal(t, "List(Scalar(Any))", Unify(ScalarShape{TypeNull}, AnyList).String())
}
