// Package qerror defines the typed failures raised by path parsing, inference,
// evaluation and plan construction.
//
// Every failure carries a Kind, a human-readable message and, where one
// applies, the offending path or expression plus a remediation hint.
package qerror

import (
	"errors"
	"fmt"
)

// Kind categorizes query errors.
type Kind string

const (
	// KindPathParse indicates a malformed path or expression string.
	KindPathParse Kind = "PATH_PARSE"

	// KindTypeMismatch indicates an operator applied to incompatible operands.
	KindTypeMismatch Kind = "TYPE_MISMATCH"

	// KindCardinality indicates a vector where a scalar was required.
	KindCardinality Kind = "CARDINALITY"

	// KindIndexOutOfRange indicates a fixed index beyond the array bounds.
	KindIndexOutOfRange Kind = "INDEX_OUT_OF_RANGE"

	// KindNullArithmetic indicates arithmetic that cannot absorb a null.
	KindNullArithmetic Kind = "NULL_ARITHMETIC"

	// KindDivisionByZero indicates an integer or float division by zero.
	KindDivisionByZero Kind = "DIVISION_BY_ZERO"

	// KindInvalidOperation covers malformed regexes, invalid casts and overflow.
	KindInvalidOperation Kind = "INVALID_OPERATION"

	// KindPathNotFound is raised only where navigation is explicitly strict.
	KindPathNotFound Kind = "PATH_NOT_FOUND"

	// KindUnknownVariable indicates a Variable with no binding in scope.
	KindUnknownVariable Kind = "UNKNOWN_VARIABLE"
)

// Kinds returns every Kind.
func Kinds() []Kind {
	return []Kind{
		KindPathParse, KindTypeMismatch, KindCardinality, KindIndexOutOfRange,
		KindNullArithmetic, KindDivisionByZero, KindInvalidOperation,
		KindPathNotFound, KindUnknownVariable,
	}
}

// Error is a typed query failure.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Path is the offending path or expression, if any.
	Path string

	// Hint suggests a remediation, e.g. "use .any()".
	Hint string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (at %s)", e.Path)
	}
	if e.Hint != "" {
		msg += "; hint: " + e.Hint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithPath returns a copy of e naming the offending path.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// WithHint returns a copy of e carrying a remediation hint.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Returns "" if err carries no *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// Is reports whether err is a query error of the given kind.
// Uses errors.As to handle wrapped errors.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PathParse creates a KindPathParse error for input at byte offset pos.
func PathParse(input string, pos int, format string, args ...any) *Error {
	return &Error{
		Kind:    KindPathParse,
		Message: fmt.Sprintf("%s at offset %d", fmt.Sprintf(format, args...), pos),
		Path:    input,
	}
}

// TypeMismatch creates a KindTypeMismatch error.
func TypeMismatch(format string, args ...any) *Error {
	return New(KindTypeMismatch, format, args...)
}

// IndexOutOfRange creates a KindIndexOutOfRange error for index i over length n.
func IndexOutOfRange(i, n int) *Error {
	return New(KindIndexOutOfRange, "index %d out of range for length %d", i, n)
}

// DivisionByZero creates a KindDivisionByZero error.
func DivisionByZero() *Error {
	return New(KindDivisionByZero, "division by zero")
}

// InvalidOperation creates a KindInvalidOperation error.
func InvalidOperation(format string, args ...any) *Error {
	return New(KindInvalidOperation, format, args...)
}
