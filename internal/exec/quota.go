package exec

import (
	"errors"
	"fmt"
)

// RowQuota bounds the number of rows any single operator may emit.
//
// Explode and the mutations can multiply or grow rows without bound; the
// quota turns a runaway plan into an error instead of exhausting memory.
// A limit of 0 disables the check.
type RowQuota struct {
	limit int
}

// NewRowQuota creates a quota allowing up to limit rows per operator.
func NewRowQuota(limit int) *RowQuota {
	return &RowQuota{limit: limit}
}

// Check validates the row count emitted by op.
func (q *RowQuota) Check(op string, rows int) error {
	if q == nil || q.limit <= 0 || rows <= q.limit {
		return nil
	}
	return &RowsExceededError{Operator: op, Rows: rows, Limit: q.limit}
}

// Limit returns the configured limit.
func (q *RowQuota) Limit() int {
	if q == nil {
		return 0
	}
	return q.limit
}

// RowsExceededError is returned when an operator emits more rows than the
// quota allows.
type RowsExceededError struct {
	Operator string // label of the operator
	Rows     int    // rows it produced
	Limit    int    // maximum allowed rows
}

// Error implements the error interface.
func (e *RowsExceededError) Error() string {
	return fmt.Sprintf("%s exceeded row quota: %d rows > %d limit", e.Operator, e.Rows, e.Limit)
}

// IsRowsExceededError returns true if the error is a RowsExceededError.
// Uses errors.As to handle wrapped errors.
func IsRowsExceededError(err error) bool {
	var re *RowsExceededError
	return errors.As(err, &re)
}
