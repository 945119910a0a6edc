package logical

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

const reduceHint = "reduce it with any(...) or all(...)"

func inferNode(e expr.Expr, kids []Shape) (Shape, error) {
	switch e := e.(type) {
	case expr.Literal:
		if e.Value == nil {
			return ScalarShape{Type: TypeNull}, nil
		}
		return ScalarShape{Type: TypeOfKind(e.Value.Kind())}, nil
	case expr.Variable:
		return AnyScalar, nil
	case expr.PathRef:
		i := 0
		for _, s := range e.Path.Segments {
			if s.Kind != expr.SegFilter || s.Filter == nil {
				continue
			}
			if err := checkPredicate(kids[i], s.Filter); err != nil {
				return nil, err
			}
			i++
		}
		if e.Path.IsVector() {
			return AnyList, nil
		}
		return AnyScalar, nil
	case expr.Binary:
		return inferBinary(e, kids[0], kids[1])
	case expr.Unary:
		if e.Op == expr.OpNot {
			if err := checkBoolOperand(kids[0], e.Operand); err != nil {
				return nil, err
			}
			return BoolScalar, nil
		}
		elem, vector := split(kids[0])
		t := TypeOf(elem)
		if !isScalarLike(elem) || !(t.IsNumeric() || t == TypeDuration || t == TypeAny || t == TypeNull) {
			return nil, qerror.TypeMismatch("cannot negate %s", elem).WithPath(e.String())
		}
		return broadcast(vector, ScalarShape{Type: t}), nil
	case expr.Call:
		return inferCall(e, kids)
	case expr.Coalesce:
		out := kids[0]
		for _, k := range kids[1:] {
			out = Unify(out, k)
		}
		return out, nil
	case expr.When:
		if err := checkBoolOperand(kids[0], e.Cond); err != nil {
			return nil, err
		}
		var otherwise Shape = ScalarShape{Type: TypeNull}
		if len(kids) == 3 {
			otherwise = kids[2]
		}
		return Unify(kids[1], otherwise), nil
	case expr.Case:
		var out Shape = ScalarShape{Type: TypeNull}
		for i, b := range e.Branches {
			if err := checkBoolOperand(kids[2*i], b.Cond); err != nil {
				return nil, err
			}
			if i == 0 {
				out = kids[1]
			} else {
				out = Unify(out, kids[2*i+1])
			}
		}
		if e.Else != nil {
			out = Unify(out, kids[len(kids)-1])
		} else {
			out = Unify(out, ScalarShape{Type: TypeNull})
		}
		return out, nil
	case expr.Cast:
		elem, vector := split(kids[0])
		if !isScalarLike(elem) {
			return nil, qerror.InvalidOperation("cannot cast %s to %s", elem, e.To).WithPath(e.String())
		}
		return broadcast(vector, ScalarShape{Type: TypeOfKind(e.To)}), nil
	case expr.ArrayFilter:
		if err := checkPredicate(kids[1], e.Predicate); err != nil {
			return nil, err
		}
		return ListShape{Elem: elementOf(kids[0])}, nil
	case expr.ArrayMap:
		return ListShape{Elem: kids[1]}, nil
	case expr.Let:
		return kids[1], nil
	case expr.ArrayCtor:
		if len(kids) == 0 {
			return AnyList, nil
		}
		elem := kids[0]
		for _, k := range kids[1:] {
			elem = Unify(elem, k)
		}
		return ListShape{Elem: elem}, nil
	case expr.ObjectCtor:
		fields := make([]FieldShape, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = FieldShape{Name: f.Name, Shape: kids[i]}
		}
		return StructShape{Fields: fields}, nil
	}
	return UnknownShape{}, nil
}

// split separates a vector's element shape from its cardinality.
func split(s Shape) (Shape, bool) {
	if l, ok := s.(ListShape); ok {
		return l.Elem, true
	}
	return s, false
}

func broadcast(vector bool, elem Shape) Shape {
	if vector {
		return ListShape{Elem: elem}
	}
	return elem
}

// elementOf returns the element shape of an array-valued input.
func elementOf(s Shape) Shape {
	if l, ok := s.(ListShape); ok {
		return l.Elem
	}
	return AnyScalar
}

func isScalarLike(s Shape) bool {
	switch s.(type) {
	case ScalarShape, UnknownShape:
		return true
	}
	return false
}

// checkPredicate requires a single boolean. Null and Any are accepted:
// a null predicate filters as false and Any is decided at evaluation.
func checkPredicate(s Shape, pred expr.Expr) error {
	if sc, ok := s.(ScalarShape); ok {
		switch sc.Type {
		case TypeBool, TypeAny, TypeNull:
			return nil
		}
	}
	if _, ok := s.(ListShape); ok {
		return qerror.New(qerror.KindCardinality, "filter predicate yields %s where Scalar(Bool) is required", s).
			WithPath(vectorSource(pred)).
			WithHint(reduceHint)
	}
	return qerror.New(qerror.KindCardinality, "filter predicate yields %s where Scalar(Bool) is required", s).
		WithPath(pred.String()).
		WithHint("compare it, e.g. x == value")
}

// checkBoolOperand validates an operand of and/or/not or a condition.
func checkBoolOperand(s Shape, operand expr.Expr) error {
	switch s := s.(type) {
	case ListShape:
		return qerror.New(qerror.KindCardinality, "boolean operand yields %s where a single value is required", s).
			WithPath(vectorSource(operand)).
			WithHint(reduceHint)
	case ScalarShape:
		switch s.Type {
		case TypeBool, TypeAny, TypeNull:
			return nil
		}
		return qerror.TypeMismatch("boolean operand has type %s", s.Type).WithPath(operand.String())
	case StructShape:
		return qerror.TypeMismatch("boolean operand is an object").WithPath(operand.String())
	}
	return nil
}

// vectorSource names the first vector-producing path inside e, which is
// usually what the user needs to reduce.
func vectorSource(e expr.Expr) string {
	found := ""
	expr.Walk(e, func(n expr.Expr) bool {
		if found != "" {
			return false
		}
		if ref, ok := n.(expr.PathRef); ok && ref.Path.IsVector() {
			found = ref.String()
			return false
		}
		return true
	})
	if found == "" {
		return e.String()
	}
	return found
}

func inferBinary(e expr.Binary, l, r Shape) (Shape, error) {
	if e.Op.IsLogical() {
		if err := checkBoolOperand(l, e.Left); err != nil {
			return nil, err
		}
		if err := checkBoolOperand(r, e.Right); err != nil {
			return nil, err
		}
		return BoolScalar, nil
	}

	le, lv := split(l)
	re, rv := split(r)
	vector := lv || rv

	if e.Op == expr.OpEq || e.Op == expr.OpNe {
		return broadcast(vector, BoolScalar), nil
	}
	if !isScalarLike(le) || !isScalarLike(re) {
		return nil, qerror.TypeMismatch("cannot apply %s to %s and %s", e.Op, le, re).WithPath(e.String())
	}
	lt, rt := TypeOf(le), TypeOf(re)

	if e.Op.IsComparison() {
		if !comparable(lt, rt) {
			return nil, qerror.TypeMismatch("cannot compare %s with %s", lt, rt).WithPath(e.String())
		}
		return broadcast(vector, BoolScalar), nil
	}

	t, ok := ArithmeticType(e.Op, lt, rt)
	if !ok {
		return nil, qerror.TypeMismatch("cannot apply %s to %s and %s", e.Op, lt, rt).WithPath(e.String())
	}
	return broadcast(vector, ScalarShape{Type: t}), nil
}

func comparable(a, b Type) bool {
	switch {
	case a == TypeAny, b == TypeAny, a == TypeNull, b == TypeNull:
		return true
	case a.IsNumeric() && b.IsNumeric():
		return true
	}
	return a == b
}

// ArithmeticType returns the result type of an arithmetic operator, or false
// when no value pair of these types supports it. Null absorbs and Any defers
// the decision to evaluation.
func ArithmeticType(op expr.BinaryOp, l, r Type) (Type, bool) {
	switch {
	case l == TypeNull || r == TypeNull:
		return TypeNull, true
	case l == TypeAny || r == TypeAny:
		known := l
		if known == TypeAny {
			known = r
		}
		switch {
		case known == TypeAny, known == TypeDuration, known == TypeDate, known == TypeDateTime:
			return TypeAny, true
		case known.IsNumeric():
			// durations scale by numbers; every other partner is numeric
			if op == expr.OpMul || op == expr.OpDiv {
				return TypeAny, true
			}
			return TypeNumber, true
		}
		return 0, false
	case l.IsNumeric() && r.IsNumeric():
		switch {
		case l == TypeFloat || r == TypeFloat:
			return TypeFloat, true
		case op == expr.OpDiv, l == TypeNumber, r == TypeNumber:
			return TypeNumber, true
		}
		return TypeInt, true
	}
	temporal := func(t Type) bool { return t == TypeDate || t == TypeDateTime }
	switch op {
	case expr.OpAdd:
		switch {
		case l == TypeDuration && r == TypeDuration:
			return TypeDuration, true
		case temporal(l) && r == TypeDuration:
			return l, true
		case l == TypeDuration && temporal(r):
			return r, true
		}
	case expr.OpSub:
		switch {
		case l == TypeDuration && r == TypeDuration:
			return TypeDuration, true
		case temporal(l) && r == TypeDuration:
			return l, true
		case temporal(l) && l == r:
			return TypeDuration, true
		}
	case expr.OpMul:
		if (l == TypeDuration && r.IsNumeric()) || (l.IsNumeric() && r == TypeDuration) {
			return TypeDuration, true
		}
	case expr.OpDiv:
		if l == TypeDuration && r.IsNumeric() {
			return TypeDuration, true
		}
	}
	return 0, false
}

func requireString(c expr.Call, s Shape) error {
	switch t := TypeOf(s); t {
	case TypeString, TypeAny, TypeNull:
		return nil
	default:
		return qerror.TypeMismatch("%s expects a string, got %s", c.Fn, t).WithPath(c.String())
	}
}

func inferCall(c expr.Call, kids []Shape) (Shape, error) {
	first, vector := split(kids[0])
	info := c.Fn.Info()

	if info.Family == expr.FamilyString && c.Fn != expr.FnJoin {
		if err := requireString(c, first); err != nil {
			return nil, err
		}
		switch c.Fn {
		case expr.FnContains, expr.FnStartsWith, expr.FnEndsWith, expr.FnRegexMatch:
			return broadcast(vector, BoolScalar), nil
		case expr.FnSplit:
			return broadcast(vector, ListShape{Elem: ScalarShape{Type: TypeString}}), nil
		}
		return broadcast(vector, ScalarShape{Type: TypeString}), nil
	}

	switch c.Fn {
	case expr.FnJoin:
		return ScalarShape{Type: TypeString}, nil
	case expr.FnIsNull, expr.FnIsNotNull:
		return BoolScalar, nil
	case expr.FnNullIf:
		return Unify(kids[0], ScalarShape{Type: TypeNull}), nil

	case expr.FnSum:
		t := TypeOf(first)
		switch {
		case t == TypeInt, t == TypeFloat, t == TypeNumber, t == TypeDuration:
			return ScalarShape{Type: t}, nil
		case t == TypeAny, t == TypeNull:
			return ScalarShape{Type: TypeAny}, nil
		}
		return nil, qerror.TypeMismatch("sum expects numbers, got %s", t).WithPath(c.String())
	case expr.FnCount, expr.FnLength:
		return ScalarShape{Type: TypeInt}, nil
	case expr.FnMean:
		t := TypeOf(first)
		if t.IsNumeric() || t == TypeAny || t == TypeNull {
			return ScalarShape{Type: TypeFloat}, nil
		}
		return nil, qerror.TypeMismatch("mean expects numbers, got %s", t).WithPath(c.String())
	case expr.FnMin, expr.FnMax, expr.FnFirst, expr.FnLast:
		return Unify(elementOf(kids[0]), ScalarShape{Type: TypeNull}), nil
	case expr.FnAny, expr.FnAll:
		switch t := TypeOf(first); t {
		case TypeBool, TypeAny, TypeNull:
			return BoolScalar, nil
		default:
			return nil, qerror.TypeMismatch("%s expects booleans, got %s", c.Fn, t).WithPath(c.String())
		}

	case expr.FnGet:
		return elementOf(kids[0]), nil
	case expr.FnSlice, expr.FnUnique, expr.FnSort, expr.FnReverse:
		return ListShape{Elem: elementOf(kids[0])}, nil
	case expr.FnConcat:
		elem := elementOf(kids[0])
		for _, k := range kids[1:] {
			elem = Unify(elem, elementOf(k))
		}
		return ListShape{Elem: elem}, nil
	case expr.FnArrayContains:
		return BoolScalar, nil

	case expr.FnField:
		if st, ok := first.(StructShape); ok {
			if name, ok := literalString(c.Args[1]); ok {
				if fs, ok := st.Field(name); ok {
					return broadcast(vector, fs), nil
				}
				return broadcast(vector, ScalarShape{Type: TypeNull}), nil
			}
		}
		return broadcast(vector, AnyScalar), nil
	case expr.FnRename, expr.FnWithField, expr.FnWithout:
		return broadcast(vector, UnknownShape{}), nil
	case expr.FnKeys:
		return ListShape{Elem: ScalarShape{Type: TypeString}}, nil
	case expr.FnValues:
		return AnyList, nil

	case expr.FnTypeOf:
		return ScalarShape{Type: TypeString}, nil
	}
	if info.Family == expr.FamilyType {
		return BoolScalar, nil
	}
	return UnknownShape{}, nil
}

func literalString(e expr.Expr) (string, bool) {
	lit, ok := e.(expr.Literal)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(ir.String)
	return string(s), ok
}
