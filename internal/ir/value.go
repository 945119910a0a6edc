package ir

import (
	"bytes"
	"time"
)

// Kind tags a scalar Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindDateTime
	KindDuration
	KindBinary
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindDuration: "duration",
	KindBinary:   "binary",
}

// String returns the lower-case kind name used in error messages and TypeOf.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsNumeric reports whether k is Int or Float.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a sealed interface representing a single JSON-like scalar.
// Only Null, Bool, Int, Float, String, Date, DateTime, Duration and Binary
// implement it.
type Value interface {
	Kind() Kind
	irValue() // Sealed - only these types implement it
}

// Null is the null scalar.
type Null struct{}

func (Null) irValue()   {}
func (Null) Kind() Kind { return KindNull }

// Bool is a boolean scalar.
type Bool bool

func (Bool) irValue()   {}
func (Bool) Kind() Kind { return KindBool }

// Int is a 64-bit integer scalar.
type Int int64

func (Int) irValue()   {}
func (Int) Kind() Kind { return KindInt }

// Float is a 64-bit floating point scalar.
type Float float64

func (Float) irValue()   {}
func (Float) Kind() Kind { return KindFloat }

// String is a UTF-8 string scalar.
type String string

func (String) irValue()   {}
func (String) Kind() Kind { return KindString }

// Date is a calendar date, stored as midnight UTC.
type Date time.Time

func (Date) irValue()   {}
func (Date) Kind() Kind { return KindDate }

// Time returns the date as a time.Time at midnight UTC.
func (d Date) Time() time.Time { return time.Time(d) }

// DateTime is an instant in time.
type DateTime time.Time

func (DateTime) irValue()   {}
func (DateTime) Kind() Kind { return KindDateTime }

// Time returns the instant as a time.Time.
func (d DateTime) Time() time.Time { return time.Time(d) }

// Duration is an elapsed time.
type Duration time.Duration

func (Duration) irValue()   {}
func (Duration) Kind() Kind { return KindDuration }

// Binary is an opaque byte string.
type Binary []byte

func (Binary) irValue()   {}
func (Binary) Kind() Kind { return KindBinary }

// DateLayout is the textual form of Date values.
const DateLayout = "2006-01-02"

// NewDate creates a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a Date in DateLayout form.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date(t), nil
}

// ParseDateTime parses an RFC 3339 DateTime.
func ParseDateTime(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return DateTime{}, err
	}
	return DateTime(t), nil
}

// FormatDate renders d in DateLayout form.
func FormatDate(d Date) string {
	return d.Time().Format(DateLayout)
}

// FormatDateTime renders d in RFC 3339 form.
func FormatDateTime(d DateTime) string {
	return d.Time().Format(time.RFC3339Nano)
}

// ValueEqual reports structural equality of two scalars.
// Int and Float compare numerically; other kinds must match exactly.
func ValueEqual(a, b Value) bool {
	if a.Kind().IsNumeric() && b.Kind().IsNumeric() {
		return numericCompare(a, b) == 0
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case String:
		return av == b.(String)
	case Date:
		return av.Time().Equal(b.(Date).Time())
	case DateTime:
		return av.Time().Equal(b.(DateTime).Time())
	case Duration:
		return av == b.(Duration)
	case Binary:
		return bytes.Equal(av, b.(Binary))
	}
	return false
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}
