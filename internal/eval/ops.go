package eval

import (
	"math"
	"time"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

// binary applies an arithmetic or comparison operator, broadcasting over
// vector operands.
func binary(e expr.Binary, l, r ir.Result) (ir.Result, error) {
	lv, rv := expr.IsVector(e.Left), expr.IsVector(e.Right)
	apply := func(a, b ir.Result) (ir.Result, error) {
		out, err := scalarBinary(e.Op, a, b)
		if err != nil {
			return nil, withPath(err, e)
		}
		return out, nil
	}
	switch {
	case lv && rv:
		la, ra := vectorItems(l), vectorItems(r)
		if len(la) != len(ra) {
			return nil, qerror.New(qerror.KindCardinality,
				"elementwise %s needs equal lengths, got %d and %d", e.Op, len(la), len(ra)).WithPath(e.String())
		}
		out := make(ir.Array, len(la))
		for i := range la {
			v, err := apply(la[i], ra[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case lv:
		return mapVector(true, l, func(a ir.Result) (ir.Result, error) { return apply(a, r) })
	case rv:
		return mapVector(true, r, func(b ir.Result) (ir.Result, error) { return apply(l, b) })
	}
	return apply(l, r)
}

func scalarBinary(op expr.BinaryOp, a, b ir.Result) (ir.Result, error) {
	switch op {
	case expr.OpEq:
		return ir.NewScalar(ir.Bool(equal(a, b))), nil
	case expr.OpNe:
		return ir.NewScalar(ir.Bool(!equal(a, b))), nil
	}
	if ir.IsNull(a) || ir.IsNull(b) {
		return null, nil
	}
	as, aok := a.(ir.Scalar)
	bs, bok := b.(ir.Scalar)
	if !aok || !bok {
		return nil, qerror.TypeMismatch("cannot apply %s to %s and %s", op, ir.TypeName(a), ir.TypeName(b))
	}
	if op.IsComparison() {
		c, err := ir.CompareValues(as.Value, bs.Value)
		if err != nil {
			return nil, err
		}
		var ok bool
		switch op {
		case expr.OpLt:
			ok = c < 0
		case expr.OpLe:
			ok = c <= 0
		case expr.OpGt:
			ok = c > 0
		case expr.OpGe:
			ok = c >= 0
		}
		return ir.NewScalar(ir.Bool(ok)), nil
	}
	v, err := Arithmetic(op, as.Value, bs.Value)
	if err != nil {
		return nil, err
	}
	return ir.NewScalar(v), nil
}

// equal treats null and missing alike; values of different kinds are unequal.
func equal(a, b ir.Result) bool {
	if ir.IsNull(a) || ir.IsNull(b) {
		return ir.IsNull(a) && ir.IsNull(b)
	}
	return ir.Equal(a, b)
}

// truth reads a boolean operand. Null is reported separately; any other
// kind is a TYPE_MISMATCH.
func truth(v ir.Result, operand expr.Expr) (b, isNull bool, err error) {
	if ir.IsNull(v) {
		return false, true, nil
	}
	if b, ok := ir.AsBool(v); ok {
		return b, false, nil
	}
	return false, false, qerror.TypeMismatch("expected boolean, got %s", ir.TypeName(v)).WithPath(operand.String())
}

// evalLogical implements three-valued and/or. The right operand is not
// evaluated once the left decides the result.
func (ev *Evaluator) evalLogical(e expr.Binary, ctx Context) (ir.Result, error) {
	l, err := ev.eval(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	lb, lnull, err := truth(l, e.Left)
	if err != nil {
		return nil, err
	}
	isAnd := e.Op == expr.OpAnd
	if !lnull && lb != isAnd {
		// false and _ / true or _
		return ir.NewScalar(ir.Bool(lb)), nil
	}

	r, err := ev.eval(e.Right, ctx)
	if err != nil {
		return nil, err
	}
	rb, rnull, err := truth(r, e.Right)
	if err != nil {
		return nil, err
	}
	switch {
	case !rnull && rb != isAnd:
		return ir.NewScalar(ir.Bool(rb)), nil
	case lnull || rnull:
		return null, nil
	}
	return ir.NewScalar(ir.Bool(isAnd)), nil
}

func not(v ir.Result, e expr.Unary) (ir.Result, error) {
	b, isNull, err := truth(v, e.Operand)
	if err != nil {
		return nil, err
	}
	if isNull {
		return null, nil
	}
	return ir.NewScalar(ir.Bool(!b)), nil
}

func negate(v ir.Result, e expr.Unary) (ir.Result, error) {
	if ir.IsNull(v) {
		return null, nil
	}
	if s, ok := v.(ir.Scalar); ok {
		switch x := s.Value.(type) {
		case ir.Int:
			if x == math.MinInt64 {
				return nil, qerror.InvalidOperation("integer overflow").WithPath(e.String())
			}
			return ir.NewScalar(-x), nil
		case ir.Float:
			return ir.NewScalar(-x), nil
		case ir.Duration:
			return ir.NewScalar(-x), nil
		}
	}
	return nil, qerror.TypeMismatch("cannot negate %s", ir.TypeName(v)).WithPath(e.String())
}

// Arithmetic applies + - * / % to two non-null scalars.
//
// Int op Int stays Int, except / which yields Float unless the division is
// exact. Any Float operand promotes to Float. Durations add to dates and
// each other and scale by numbers. Integer overflow is INVALID_OPERATION.
func Arithmetic(op expr.BinaryOp, a, b ir.Value) (ir.Value, error) {
	switch av := a.(type) {
	case ir.Int:
		switch bv := b.(type) {
		case ir.Int:
			return intArith(op, int64(av), int64(bv))
		case ir.Float:
			return floatArith(op, float64(av), float64(bv))
		case ir.Duration:
			if op == expr.OpMul {
				return scaleDuration(bv, float64(av))
			}
		}
	case ir.Float:
		switch bv := b.(type) {
		case ir.Int:
			return floatArith(op, float64(av), float64(bv))
		case ir.Float:
			return floatArith(op, float64(av), float64(bv))
		case ir.Duration:
			if op == expr.OpMul {
				return scaleDuration(bv, float64(av))
			}
		}
	case ir.Duration:
		switch bv := b.(type) {
		case ir.Duration:
			switch op {
			case expr.OpAdd:
				v, err := intArith(op, int64(av), int64(bv))
				if err != nil {
					return nil, err
				}
				return ir.Duration(v.(ir.Int)), nil
			case expr.OpSub:
				v, err := intArith(op, int64(av), int64(bv))
				if err != nil {
					return nil, err
				}
				return ir.Duration(v.(ir.Int)), nil
			}
		case ir.Int, ir.Float:
			f, _ := ir.AsFloat(bv)
			switch op {
			case expr.OpMul:
				return scaleDuration(av, f)
			case expr.OpDiv:
				if f == 0 {
					return nil, qerror.DivisionByZero()
				}
				return scaleDuration(av, 1/f)
			}
		case ir.Date, ir.DateTime:
			if op == expr.OpAdd {
				return Arithmetic(op, b, a)
			}
		}
	case ir.Date:
		switch bv := b.(type) {
		case ir.Duration:
			switch op {
			case expr.OpAdd:
				return ir.NewDate(av.Time().Add(time.Duration(bv)).Date()), nil
			case expr.OpSub:
				return ir.NewDate(av.Time().Add(-time.Duration(bv)).Date()), nil
			}
		case ir.Date:
			if op == expr.OpSub {
				return ir.Duration(av.Time().Sub(bv.Time())), nil
			}
		}
	case ir.DateTime:
		switch bv := b.(type) {
		case ir.Duration:
			switch op {
			case expr.OpAdd:
				return ir.DateTime(av.Time().Add(time.Duration(bv))), nil
			case expr.OpSub:
				return ir.DateTime(av.Time().Add(-time.Duration(bv))), nil
			}
		case ir.DateTime:
			if op == expr.OpSub {
				return ir.Duration(av.Time().Sub(bv.Time())), nil
			}
		}
	}
	return nil, qerror.TypeMismatch("cannot apply %s to %s and %s", op, a.Kind(), b.Kind())
}

func intArith(op expr.BinaryOp, a, b int64) (ir.Value, error) {
	overflow := func() (ir.Value, error) {
		return nil, qerror.InvalidOperation("integer overflow in %d %s %d", a, op, b)
	}
	switch op {
	case expr.OpAdd:
		r := a + b
		if (r > a) != (b > 0) {
			return overflow()
		}
		return ir.Int(r), nil
	case expr.OpSub:
		r := a - b
		if (r < a) != (b > 0) {
			return overflow()
		}
		return ir.Int(r), nil
	case expr.OpMul:
		if a == 0 || b == 0 {
			return ir.Int(0), nil
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return overflow()
		}
		return ir.Int(r), nil
	case expr.OpDiv:
		if b == 0 {
			return nil, qerror.DivisionByZero()
		}
		if a == math.MinInt64 && b == -1 {
			return overflow()
		}
		if a%b == 0 {
			return ir.Int(a / b), nil
		}
		return ir.Float(float64(a) / float64(b)), nil
	case expr.OpMod:
		if b == 0 {
			return nil, qerror.DivisionByZero()
		}
		return ir.Int(a % b), nil
	}
	return nil, qerror.InvalidOperation("%s is not arithmetic", op)
}

func floatArith(op expr.BinaryOp, a, b float64) (ir.Value, error) {
	switch op {
	case expr.OpAdd:
		return ir.Float(a + b), nil
	case expr.OpSub:
		return ir.Float(a - b), nil
	case expr.OpMul:
		return ir.Float(a * b), nil
	case expr.OpDiv:
		if b == 0 {
			return nil, qerror.DivisionByZero()
		}
		return ir.Float(a / b), nil
	case expr.OpMod:
		if b == 0 {
			return nil, qerror.DivisionByZero()
		}
		return ir.Float(math.Mod(a, b)), nil
	}
	return nil, qerror.InvalidOperation("%s is not arithmetic", op)
}

func scaleDuration(d ir.Duration, f float64) (ir.Value, error) {
	r := float64(d) * f
	if math.IsNaN(r) || r > math.MaxInt64 || r < math.MinInt64 {
		return nil, qerror.InvalidOperation("duration overflow")
	}
	return ir.Duration(time.Duration(r)), nil
}
