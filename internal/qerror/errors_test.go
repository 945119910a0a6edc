package qerror

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := New(KindCardinality, "filter predicate is a vector").
		WithPath("items[*].active").
		WithHint("use .any() or .all()")

	assert.Equal(t,
		"CARDINALITY: filter predicate is a vector (at items[*].active); hint: use .any() or .all()",
		err.Error())
}

func TestIs_Wrapped(t *testing.T) {
	base := DivisionByZero()
	wrapped := fmt.Errorf("evaluate filter: %w", base)

	assert.True(t, Is(wrapped, KindDivisionByZero))
	assert.False(t, Is(wrapped, KindTypeMismatch))
	assert.Equal(t, KindDivisionByZero, KindOf(wrapped))
}

func TestIs_NonQueryError(t *testing.T) {
	assert.False(t, Is(fmt.Errorf("plain"), KindPathParse))
	assert.False(t, Is(nil, KindPathParse))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}

func TestWithPath_DoesNotMutate(t *testing.T) {
	base := IndexOutOfRange(5, 3)
	withPath := base.WithPath("items[5]")

	assert.Empty(t, base.Path)
	assert.Equal(t, "items[5]", withPath.Path)
	assert.Contains(t, withPath.Error(), "index 5 out of range for length 3")
}

func TestPathParse(t *testing.T) {
	err := PathParse("items[", 6, "unexpected end of input")
	assert.Equal(t, KindPathParse, err.Kind)
	assert.Equal(t, "items[", err.Path)
	assert.Contains(t, err.Message, "offset 6")
}
