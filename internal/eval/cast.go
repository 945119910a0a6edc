package eval

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

// Cast converts a scalar to another kind. Null casts to null; arrays,
// objects and unparseable text are INVALID_OPERATION. The evaluator
// applies Cast elementwise to vector operands, so only nested arrays
// reach it.
func Cast(v ir.Result, to ir.Kind) (ir.Result, error) {
	if ir.IsNull(v) {
		return null, nil
	}
	s, ok := v.(ir.Scalar)
	if !ok {
		return nil, qerror.InvalidOperation("cannot cast %s to %s", ir.TypeName(v), to)
	}
	out, err := castValue(s.Value, to)
	if err != nil {
		return nil, err
	}
	return ir.NewScalar(out), nil
}

func castValue(v ir.Value, to ir.Kind) (ir.Value, error) {
	if v.Kind() == to {
		return v, nil
	}
	invalid := func() (ir.Value, error) {
		return nil, qerror.InvalidOperation("cannot cast %s %s to %s", v.Kind(), formatValue(v), to)
	}
	switch to {
	case ir.KindBool:
		switch x := v.(type) {
		case ir.Int:
			return ir.Bool(x != 0), nil
		case ir.Float:
			return ir.Bool(x != 0), nil
		case ir.String:
			b, err := strconv.ParseBool(strings.TrimSpace(string(x)))
			if err != nil {
				return invalid()
			}
			return ir.Bool(b), nil
		}
	case ir.KindInt:
		switch x := v.(type) {
		case ir.Bool:
			if x {
				return ir.Int(1), nil
			}
			return ir.Int(0), nil
		case ir.Float:
			f := math.Trunc(float64(x))
			if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
				return invalid()
			}
			return ir.Int(int64(f)), nil
		case ir.String:
			text := strings.TrimSpace(string(x))
			if n, err := strconv.ParseInt(text, 10, 64); err == nil {
				return ir.Int(n), nil
			}
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				return castValue(ir.Float(f), to)
			}
			return invalid()
		case ir.Duration:
			return ir.Int(x), nil
		}
	case ir.KindFloat:
		switch x := v.(type) {
		case ir.Bool:
			if x {
				return ir.Float(1), nil
			}
			return ir.Float(0), nil
		case ir.Int:
			return ir.Float(x), nil
		case ir.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
			if err != nil {
				return invalid()
			}
			return ir.Float(f), nil
		}
	case ir.KindString:
		return ir.String(formatValue(v)), nil
	case ir.KindDate:
		switch x := v.(type) {
		case ir.String:
			if d, err := ir.ParseDate(string(x)); err == nil {
				return d, nil
			}
			if dt, err := ir.ParseDateTime(string(x)); err == nil {
				return ir.NewDate(dt.Time().Date()), nil
			}
			return invalid()
		case ir.DateTime:
			return ir.NewDate(x.Time().Date()), nil
		}
	case ir.KindDateTime:
		switch x := v.(type) {
		case ir.String:
			dt, err := ir.ParseDateTime(string(x))
			if err != nil {
				return invalid()
			}
			return dt, nil
		case ir.Date:
			return ir.DateTime(x.Time()), nil
		}
	case ir.KindDuration:
		switch x := v.(type) {
		case ir.String:
			d, err := time.ParseDuration(strings.TrimSpace(string(x)))
			if err != nil {
				return invalid()
			}
			return ir.Duration(d), nil
		case ir.Int:
			return ir.Duration(x), nil
		}
	case ir.KindBinary:
		if x, ok := v.(ir.String); ok {
			return ir.Binary(x), nil
		}
	}
	return invalid()
}

// formatValue renders a scalar as plain text, as cast to string does.
func formatValue(v ir.Value) string {
	switch x := v.(type) {
	case ir.Null:
		return "null"
	case ir.Bool:
		return strconv.FormatBool(bool(x))
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case ir.String:
		return string(x)
	case ir.Date:
		return ir.FormatDate(x)
	case ir.DateTime:
		return ir.FormatDateTime(x)
	case ir.Duration:
		return time.Duration(x).String()
	case ir.Binary:
		return base64.StdEncoding.EncodeToString(x)
	}
	return ""
}

// KeyString renders a result as a map key: strings as themselves, other
// scalars as text, structures as canonical JSON.
func KeyString(r ir.Result) string {
	if s, ok := r.(ir.Scalar); ok {
		return formatValue(s.Value)
	}
	if ir.IsNull(r) {
		return "null"
	}
	return string(ir.CanonicalKey(r))
}
