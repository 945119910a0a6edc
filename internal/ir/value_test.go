package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeq/internal/qerror"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "int", Int(1).Kind().String())
	assert.Equal(t, "datetime", DateTime{}.Kind().String())
	assert.Equal(t, "unknown", Kind(200).String())
	assert.True(t, KindFloat.IsNumeric())
	assert.False(t, KindString.IsNumeric())
}

func TestValueEqual_NumericCrossKind(t *testing.T) {
	assert.True(t, ValueEqual(Int(3), Float(3.0)))
	assert.False(t, ValueEqual(Int(3), Float(3.5)))
	assert.False(t, ValueEqual(Int(3), String("3")))
	assert.True(t, ValueEqual(Binary("ab"), Binary("ab")))
	assert.True(t, ValueEqual(NewDate(2024, time.March, 1), NewDate(2024, time.March, 1)))
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", Int(1), Int(2), -1},
		{"int float", Int(2), Float(1.5), 1},
		{"strings", String("b"), String("a"), 1},
		{"bools", Bool(false), Bool(true), -1},
		{"dates", NewDate(2024, 1, 1), NewDate(2023, 1, 1), 1},
		{"durations", Duration(time.Second), Duration(time.Minute), -1},
		{"equal floats", Float(1.25), Float(1.25), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareValues(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareValues_TypeMismatch(t *testing.T) {
	_, err := CompareValues(String("a"), Int(1))
	require.Error(t, err)
	assert.True(t, qerror.Is(err, qerror.KindTypeMismatch))
}

func TestParseDateTime(t *testing.T) {
	dt, err := ParseDateTime("2024-05-06T07:08:09Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06T07:08:09Z", FormatDateTime(dt))

	d, err := ParseDate("2024-05-06")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", FormatDate(d))

	_, err = ParseDate("06/05/2024")
	assert.Error(t, err)
}

func TestObject_Operations(t *testing.T) {
	obj := NewObject(
		F("a", NewScalar(Int(1))),
		F("b", NewScalar(Int(2))),
		F("a", NewScalar(Int(3))),
	)
	assert.Equal(t, []string{"a", "b"}, obj.Keys(), "duplicate keeps first position")
	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, NewScalar(Int(3)), v, "duplicate takes last value")

	with := obj.With("c", NewScalar(Int(4)))
	assert.Equal(t, []string{"a", "b", "c"}, with.Keys())
	assert.Equal(t, []string{"a", "b"}, obj.Keys(), "With must not mutate")

	assert.Equal(t, []string{"b"}, obj.Without("a").Keys())
	assert.Equal(t, []string{"x", "b"}, obj.Rename("a", "x").Keys())
	assert.Equal(t, []string{"b"}, obj.Rename("a", "b").Keys()[:1])
	assert.Equal(t, obj, obj.Rename("zzz", "y"))
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(Missing{}))
	assert.True(t, IsNull(NewScalar(Null{})))
	assert.False(t, IsNull(NewScalar(Int(0))))
	assert.False(t, IsNull(Array{}))
}

func TestEqual_MissingVersusNull(t *testing.T) {
	assert.True(t, Equal(Missing{}, Missing{}))
	assert.False(t, Equal(Missing{}, NewScalar(Null{})))
	assert.True(t, Equal(
		NewObject(F("a", NewScalar(Int(1))), F("b", NewScalar(Int(2)))),
		NewObject(F("b", NewScalar(Float(2))), F("a", NewScalar(Int(1)))),
	))
}

func TestTotalCompare_MixedKinds(t *testing.T) {
	ordered := []Result{
		Missing{},
		NewScalar(Null{}),
		NewScalar(Bool(false)),
		NewScalar(Int(-5)),
		NewScalar(Float(2.5)),
		NewScalar(String("a")),
		NewArray(NewScalar(Int(1))),
		NewObject(),
	}
	for i := 0; i+1 < len(ordered); i++ {
		assert.Equal(t, -1, TotalCompare(ordered[i], ordered[i+1]), "index %d", i)
		assert.Equal(t, 1, TotalCompare(ordered[i+1], ordered[i]), "index %d", i)
	}
	assert.Equal(t, 0, TotalCompare(NewScalar(Int(2)), NewScalar(Float(2))))
}
