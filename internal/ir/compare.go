package ir

import (
	"bytes"
	"cmp"
	"math"
	"strings"

	"github.com/roach88/treeq/internal/qerror"
)

// numericCompare orders two numeric Values.
// Int/Int compares exactly; any Float operand compares as float64.
// NaN sorts before every other number.
func numericCompare(a, b Value) int {
	ai, aInt := a.(Int)
	bi, bInt := b.(Int)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	af, _ := AsFloat(a)
	bf, _ := AsFloat(b)
	switch {
	case math.IsNaN(af) && math.IsNaN(bf):
		return 0
	case math.IsNaN(af):
		return -1
	case math.IsNaN(bf):
		return 1
	}
	return cmp.Compare(af, bf)
}

// CompareValues orders two non-null scalars for <, <=, > and >=.
// Numbers cross-compare; every other kind compares only with itself.
// Returns a KindTypeMismatch error for incompatible kinds.
func CompareValues(a, b Value) (int, error) {
	if a.Kind().IsNumeric() && b.Kind().IsNumeric() {
		return numericCompare(a, b), nil
	}
	if a.Kind() != b.Kind() {
		return 0, qerror.TypeMismatch("cannot compare %s with %s", a.Kind(), b.Kind())
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0, nil
		case !bool(av):
			return -1, nil
		}
		return 1, nil
	case String:
		return strings.Compare(string(av), string(b.(String))), nil
	case Date:
		return av.Time().Compare(b.(Date).Time()), nil
	case DateTime:
		return av.Time().Compare(b.(DateTime).Time()), nil
	case Duration:
		return cmp.Compare(av, b.(Duration)), nil
	case Binary:
		return bytes.Compare(av, b.(Binary)), nil
	}
	return 0, qerror.TypeMismatch("cannot order %s values", a.Kind())
}

// Equal reports deep structural equality of two Results.
// Missing equals only Missing; numbers compare numerically.
func Equal(a, b Result) bool {
	switch av := a.(type) {
	case nil, Missing:
		switch b.(type) {
		case nil, Missing:
			return true
		}
		return false
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && ValueEqual(av.Value, bv.Value)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for _, f := range av.Fields {
			other, found := bv.Get(f.Name)
			if !found || !Equal(f.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}

// rank places each result shape and scalar kind in the total sort order.
func rank(r Result) int {
	switch v := r.(type) {
	case nil, Missing:
		return 0
	case Scalar:
		switch v.Value.Kind() {
		case KindNull:
			return 1
		case KindBool:
			return 2
		case KindInt, KindFloat:
			return 3
		case KindString:
			return 4
		case KindDate:
			return 5
		case KindDateTime:
			return 6
		case KindDuration:
			return 7
		case KindBinary:
			return 8
		}
	case Array:
		return 9
	case Object:
		return 10
	}
	return 11
}

// TotalCompare orders any two Results. It never fails, which makes it
// suitable for sorting heterogeneous data:
//
//	Missing < Null < Bool < numbers < String < Date < DateTime < Duration
//	  < Binary < Array < Object
//
// Arrays compare elementwise then by length; objects compare by their
// fields in insertion order.
func TotalCompare(a, b Result) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case Scalar:
		if ra == 1 {
			return 0
		}
		c, err := CompareValues(av.Value, b.(Scalar).Value)
		if err != nil {
			return 0
		}
		return c
	case Array:
		bv := b.(Array)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := TotalCompare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	case Object:
		bv := b.(Object)
		for i := 0; i < len(av.Fields) && i < len(bv.Fields); i++ {
			if c := strings.Compare(av.Fields[i].Name, bv.Fields[i].Name); c != 0 {
				return c
			}
			if c := TotalCompare(av.Fields[i].Value, bv.Fields[i].Value); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av.Fields), len(bv.Fields))
	}
	return 0
}
