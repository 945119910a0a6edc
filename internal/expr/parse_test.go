package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

func TestParse_Canonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a+b*c", "a + b * c"},
		{"(a + b) * c", "(a + b) * c"},
		{"a - (b - c)", "a - (b - c)"},
		{"a - b - c", "a - b - c"},
		{"not a and b", "not a and b"},
		{"not (a and b)", "not (a and b)"},
		{"a or b and c", "a or b and c"},
		{"(a or b) and c", "(a or b) and c"},
		{"-5", "-5"},
		{"-(5)", "-(5)"},
		{"-x", "-x"},
		{"a - -1.5", "a - -1.5"},
		{"x == 1.0", "x == 1.0"},
		{"2.5e3", "2500.0"},
		{`case(score >= 90, "A", score >= 80, "B", "F")`, `case(score >= 90, "A", score >= 80, "B", "F")`},
		{"filter(items, it, $it.price < 5)", "filter(items, it, $it.price < 5)"},
		{"map(items, $it, $it.qty * 2)", "map(items, it, $it.qty * 2)"},
		{"let(x, 2, $x * $x)", "let(x, 2, $x * $x)"},
		{`{"a": 1, b: [1, 2]}`, `{"a": 1, "b": [1, 2]}`},
		{`date("2024-01-02")`, `date("2024-01-02")`},
		{`duration("90m")`, `duration("1h30m0s")`},
		{`cast(x, "int")`, `cast(x, "int")`},
		{"sum(items[*].b) > 10 or is_null(owner)", "sum(items[*].b) > 10 or is_null(owner)"},
		{`a.b == 1 and c != "x"`, `a.b == 1 and c != "x"`},
		{".[0].a == 1", ".[0].a == 1"},
		{"coalesce(a, 0)", "coalesce(a, 0)"},
		{"when(a, 1)", "when(a, 1)"},
		{"items[?@.qty > 0 ]", "items[?@.qty > 0 ]"},
		{"$x", "$x"},
		{"[]", "[]"},
		{"{}", "{}"},
		{"null", "null"},
		{"a % 2 == 0", "a % 2 == 0"},
		{"(a == b) == c", "(a == b) == c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())

			again, err := Parse(e.String())
			require.NoError(t, err)
			assert.True(t, Equal(e, again))
		})
	}
}

func TestParse_Structure(t *testing.T) {
	e := MustParse("1 + 2 * 3")
	assert.Equal(t, Binary{
		Op:    OpAdd,
		Left:  Int(1),
		Right: Binary{Op: OpMul, Left: Int(2), Right: Int(3)},
	}, e)

	assert.Equal(t, Variable{Name: "row"}, MustParse("$row"))
	assert.Equal(t, Int(-7), MustParse("-7"))
	assert.Equal(t, Literal{Value: ir.Float(1)}, MustParse("1.0"))
	assert.Equal(t, Literal{Value: ir.Bool(true)}, MustParse("true"))

	c, ok := MustParse(`case(a, 1, b, 2)`).(Case)
	require.True(t, ok)
	assert.Len(t, c.Branches, 2)
	assert.Nil(t, c.Else)

	call, ok := MustParse("starts_with(name, \"x\")").(Call)
	require.True(t, ok)
	assert.Equal(t, FnStartsWith, call.Fn)
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"a == b == c",
		"foo(1)",
		"sum(1, 2)",
		"1 +",
		"(1",
		`cast(x, "nope")`,
		`date("x")`,
		"and",
		"a b",
		"filter(items, 1, true)",
		"let(x, 1)",
		`"unterminated`,
		"[1, 2",
		`{"a" 1}`,
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			require.Error(t, err)
			assert.True(t, qerror.Is(err, qerror.KindPathParse), "got %v", err)
		})
	}
}

func TestParse_DeepNesting(t *testing.T) {
	src := ""
	for range 300 {
		src += "("
	}
	_, err := Parse(src + "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested too deeply")
}

func TestBuilder_Case(t *testing.T) {
	c := NewCase().
		When(Ge(P("score"), Int(90)), Str("A")).
		When(Ge(P("score"), Int(80)), Str("B")).
		Otherwise(Str("F"))
	assert.Equal(t, `case(score >= 90, "A", score >= 80, "B", "F")`, c.String())
	assert.True(t, Equal(c, MustParse(c.String())))
}

func TestBuilder_AndOr(t *testing.T) {
	assert.Equal(t, "true", And().String())
	assert.Equal(t, "a and b and c", And(P("a"), P("b"), P("c")).String())
	assert.Equal(t, "a or b", Or(P("a"), P("b")).String())
	assert.Equal(t, "coalesce(a, false)", IfNull(P("a"), Bool(false)).String())
}
