package eval

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

func (ev *Evaluator) call(c expr.Call, ctx Context) (ir.Result, error) {
	args := make([]ir.Result, len(c.Args))
	for i, a := range c.Args {
		v, err := ev.eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	out, err := ev.apply(c, args)
	if err != nil {
		return nil, withPath(err, c)
	}
	return out, nil
}

func (ev *Evaluator) apply(c expr.Call, args []ir.Result) (ir.Result, error) {
	info := c.Fn.Info()
	switch info.Family {
	case expr.FamilyString:
		if c.Fn == expr.FnJoin {
			return join(args[0], args[1])
		}
		return mapVector(expr.IsVector(c.Args[0]), args[0], func(s ir.Result) (ir.Result, error) {
			return ev.stringFunc(c.Fn, s, args[1:])
		})
	case expr.FamilyAggregate:
		return Aggregate(c.Fn, vectorItems(args[0]))
	case expr.FamilyType:
		return typeFunc(c.Fn, args[0]), nil
	case expr.FamilyObject:
		switch c.Fn {
		case expr.FnField, expr.FnRename, expr.FnWithField, expr.FnWithout:
			return mapVector(expr.IsVector(c.Args[0]), args[0], func(o ir.Result) (ir.Result, error) {
				return objectFunc(c.Fn, o, args[1:])
			})
		}
		return objectFunc(c.Fn, args[0], args[1:])
	}

	switch c.Fn {
	case expr.FnIsNull:
		return ir.NewScalar(ir.Bool(ir.IsNull(args[0]))), nil
	case expr.FnIsNotNull:
		return ir.NewScalar(ir.Bool(!ir.IsNull(args[0]))), nil
	case expr.FnNullIf:
		if equal(args[0], args[1]) {
			return null, nil
		}
		return args[0], nil
	}
	return arrayFunc(c.Fn, args)
}

func stringArg(v ir.Result, what string) (string, bool, error) {
	if ir.IsNull(v) {
		return "", false, nil
	}
	if s, ok := v.(ir.Scalar); ok {
		if str, ok := s.Value.(ir.String); ok {
			return string(str), true, nil
		}
	}
	return "", false, qerror.TypeMismatch("%s must be a string, got %s", what, ir.TypeName(v))
}

func intArg(v ir.Result, what string) (int, bool, error) {
	if ir.IsNull(v) {
		return 0, false, nil
	}
	if s, ok := v.(ir.Scalar); ok {
		if n, ok := s.Value.(ir.Int); ok {
			return int(n), true, nil
		}
	}
	return 0, false, qerror.TypeMismatch("%s must be an integer, got %s", what, ir.TypeName(v))
}

func str(s string) ir.Result { return ir.NewScalar(ir.String(s)) }

func (ev *Evaluator) regex(pattern string) (*regexp.Regexp, error) {
	if ev.regexes != nil {
		if re, ok := ev.regexes.Get(pattern); ok {
			return re, nil
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, qerror.Wrap(qerror.KindInvalidOperation, err, "invalid regex %q", pattern)
	}
	if ev.regexes != nil {
		ev.regexes.Add(pattern, re)
	}
	return re, nil
}

// stringFunc applies a string function to one subject. A null subject or a
// null argument yields null.
func (ev *Evaluator) stringFunc(fn expr.Func, subject ir.Result, rest []ir.Result) (ir.Result, error) {
	s, ok, err := stringArg(subject, fn.String()+" subject")
	if err != nil || !ok {
		return null, err
	}
	strs := make([]string, 0, len(rest))
	for i, a := range rest {
		if fn == expr.FnSubstring || (fn == expr.FnRegexExtract && i == 1) {
			break
		}
		v, ok, err := stringArg(a, fn.String()+" argument")
		if err != nil || !ok {
			return null, err
		}
		strs = append(strs, v)
	}

	switch fn {
	case expr.FnContains:
		return ir.NewScalar(ir.Bool(strings.Contains(s, strs[0]))), nil
	case expr.FnStartsWith:
		return ir.NewScalar(ir.Bool(strings.HasPrefix(s, strs[0]))), nil
	case expr.FnEndsWith:
		return ir.NewScalar(ir.Bool(strings.HasSuffix(s, strs[0]))), nil
	case expr.FnLower:
		return str(cases.Lower(language.Und).String(s)), nil
	case expr.FnUpper:
		return str(cases.Upper(language.Und).String(s)), nil
	case expr.FnTrim:
		return str(strings.TrimSpace(s)), nil
	case expr.FnSubstring:
		return substring(s, rest)
	case expr.FnReplace:
		return str(strings.ReplaceAll(s, strs[0], strs[1])), nil
	case expr.FnSplit:
		parts := strings.Split(s, strs[0])
		out := make(ir.Array, len(parts))
		for i, p := range parts {
			out[i] = str(p)
		}
		return out, nil
	case expr.FnRegexMatch:
		re, err := ev.regex(strs[0])
		if err != nil {
			return nil, err
		}
		return ir.NewScalar(ir.Bool(re.MatchString(s))), nil
	case expr.FnRegexExtract:
		re, err := ev.regex(strs[0])
		if err != nil {
			return nil, err
		}
		group := 0
		if len(rest) > 1 {
			g, ok, err := intArg(rest[1], "regex_extract group")
			if err != nil || !ok {
				return null, err
			}
			group = g
		}
		if group < 0 || group > re.NumSubexp() {
			return nil, qerror.InvalidOperation("regex %q has no group %d", strs[0], group)
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return null, nil
		}
		return str(m[group]), nil
	case expr.FnRegexReplace:
		re, err := ev.regex(strs[0])
		if err != nil {
			return nil, err
		}
		return str(re.ReplaceAllString(s, strs[1])), nil
	}
	return nil, qerror.InvalidOperation("%s is not a string function", fn)
}

// substring takes a rune offset (negative counts from the end) and an
// optional rune length, clamped to the string.
func substring(s string, rest []ir.Result) (ir.Result, error) {
	runes := []rune(s)
	start, ok, err := intArg(rest[0], "substring start")
	if err != nil || !ok {
		return null, err
	}
	if start < 0 {
		start = max(len(runes)+start, 0)
	}
	start = min(start, len(runes))
	end := len(runes)
	if len(rest) > 1 {
		n, ok, err := intArg(rest[1], "substring length")
		if err != nil || !ok {
			return null, err
		}
		if n < 0 {
			return nil, qerror.InvalidOperation("substring length %d is negative", n)
		}
		end = min(start+n, len(runes))
	}
	return str(string(runes[start:end])), nil
}

func join(list, sep ir.Result) (ir.Result, error) {
	delim, ok, err := stringArg(sep, "join separator")
	if err != nil || !ok {
		return null, err
	}
	var parts []string
	for _, item := range vectorItems(list) {
		s, ok, err := stringArg(item, "join element")
		if err != nil {
			return nil, err
		}
		if ok {
			parts = append(parts, s)
		}
	}
	return str(strings.Join(parts, delim)), nil
}

// Aggregate reduces a vector with an aggregate function. Null elements
// are skipped. Sum and Count of an empty vector are 0; Mean, Min and Max
// are null.
func Aggregate(fn expr.Func, items []ir.Result) (ir.Result, error) {
	switch fn {
	case expr.FnFirst:
		if len(items) == 0 {
			return null, nil
		}
		return items[0], nil
	case expr.FnLast:
		if len(items) == 0 {
			return null, nil
		}
		return items[len(items)-1], nil
	}

	if fn == expr.FnCount {
		n := 0
		for _, it := range items {
			if !ir.IsNull(it) {
				n++
			}
		}
		return ir.NewScalar(ir.Int(n)), nil
	}

	values := make([]ir.Value, 0, len(items))
	for _, it := range items {
		if ir.IsNull(it) {
			continue
		}
		s, ok := it.(ir.Scalar)
		if !ok {
			return nil, qerror.TypeMismatch("%s cannot aggregate %s", fn, ir.TypeName(it))
		}
		values = append(values, s.Value)
	}

	switch fn {
	case expr.FnSum:
		var total ir.Value
		for _, v := range values {
			if !v.Kind().IsNumeric() && v.Kind() != ir.KindDuration {
				return nil, qerror.TypeMismatch("sum cannot add %s", v.Kind())
			}
			if total == nil {
				total = v
				continue
			}
			next, err := Arithmetic(expr.OpAdd, total, v)
			if err != nil {
				return nil, err
			}
			total = next
		}
		if total == nil {
			total = ir.Int(0)
		}
		return ir.NewScalar(total), nil
	case expr.FnMean:
		if len(values) == 0 {
			return null, nil
		}
		var sum float64
		for _, v := range values {
			f, ok := ir.AsFloat(v)
			if !ok {
				return nil, qerror.TypeMismatch("mean cannot average %s", v.Kind())
			}
			sum += f
		}
		return ir.NewScalar(ir.Float(sum / float64(len(values)))), nil
	case expr.FnMin, expr.FnMax:
		if len(values) == 0 {
			return null, nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c, err := ir.CompareValues(v, best)
			if err != nil {
				return nil, err
			}
			if (fn == expr.FnMin && c < 0) || (fn == expr.FnMax && c > 0) {
				best = v
			}
		}
		return ir.NewScalar(best), nil
	case expr.FnAny, expr.FnAll:
		want := fn == expr.FnAny
		for _, v := range values {
			b, ok := v.(ir.Bool)
			if !ok {
				return nil, qerror.TypeMismatch("%s expects booleans, got %s", fn, v.Kind())
			}
			if bool(b) == want {
				return ir.NewScalar(ir.Bool(want)), nil
			}
		}
		return ir.NewScalar(ir.Bool(!want)), nil
	}
	return nil, qerror.InvalidOperation("%s is not an aggregate", fn)
}

func typeFunc(fn expr.Func, v ir.Result) ir.Result {
	if fn == expr.FnTypeOf {
		return str(ir.TypeName(v))
	}
	var kind ir.Kind
	isScalar := false
	if s, ok := v.(ir.Scalar); ok {
		kind, isScalar = s.Value.Kind(), true
	}
	var ok bool
	switch fn {
	case expr.FnIsBool:
		ok = isScalar && kind == ir.KindBool
	case expr.FnIsInt:
		ok = isScalar && kind == ir.KindInt
	case expr.FnIsFloat:
		ok = isScalar && kind == ir.KindFloat
	case expr.FnIsNumeric:
		ok = isScalar && kind.IsNumeric()
	case expr.FnIsString:
		ok = isScalar && kind == ir.KindString
	case expr.FnIsDate:
		ok = isScalar && kind == ir.KindDate
	case expr.FnIsDateTime:
		ok = isScalar && kind == ir.KindDateTime
	case expr.FnIsDuration:
		ok = isScalar && kind == ir.KindDuration
	case expr.FnIsArray:
		_, ok = v.(ir.Array)
	case expr.FnIsObject:
		_, ok = v.(ir.Object)
	}
	return ir.NewScalar(ir.Bool(ok))
}

func arrayFunc(fn expr.Func, args []ir.Result) (ir.Result, error) {
	subject := args[0]
	if fn == expr.FnLength {
		switch v := subject.(type) {
		case ir.Array:
			return ir.NewScalar(ir.Int(len(v))), nil
		case ir.Object:
			return ir.NewScalar(ir.Int(len(v.Fields))), nil
		case ir.Scalar:
			if s, ok := v.Value.(ir.String); ok {
				return ir.NewScalar(ir.Int(utf8.RuneCountInString(string(s)))), nil
			}
		}
		if ir.IsNull(subject) {
			return null, nil
		}
		return nil, qerror.TypeMismatch("len of %s", ir.TypeName(subject))
	}
	if fn == expr.FnConcat {
		out := ir.Array{}
		for _, a := range args {
			switch v := a.(type) {
			case ir.Array:
				out = append(out, v...)
			default:
				if !ir.IsNull(v) {
					out = append(out, v)
				}
			}
		}
		return out, nil
	}

	if ir.IsNull(subject) {
		return null, nil
	}
	arr, ok := subject.(ir.Array)
	if !ok {
		return nil, qerror.TypeMismatch("%s expects an array, got %s", fn, ir.TypeName(subject))
	}

	switch fn {
	case expr.FnGet:
		i, ok, err := intArg(args[1], "get index")
		if err != nil || !ok {
			return null, err
		}
		at := i
		if at < 0 {
			at += len(arr)
		}
		if at < 0 || at >= len(arr) {
			return nil, qerror.IndexOutOfRange(i, len(arr))
		}
		return arr[at], nil
	case expr.FnSlice:
		start, ok, err := intArg(args[1], "slice start")
		if err != nil || !ok {
			return null, err
		}
		end := len(arr)
		if len(args) > 2 {
			e, ok, err := intArg(args[2], "slice end")
			if err != nil {
				return nil, err
			}
			if ok {
				end = e
			}
		}
		lo, hi := clampRange(start, end, len(arr))
		return slices.Clone(arr[lo:hi]), nil
	case expr.FnArrayContains:
		for _, item := range arr {
			if equal(item, args[1]) {
				return ir.NewScalar(ir.Bool(true)), nil
			}
		}
		return ir.NewScalar(ir.Bool(false)), nil
	case expr.FnUnique:
		seen := map[string]bool{}
		out := ir.Array{}
		for _, item := range arr {
			key := string(ir.CanonicalKey(item))
			if !seen[key] {
				seen[key] = true
				out = append(out, item)
			}
		}
		return out, nil
	case expr.FnSort:
		desc := false
		if len(args) > 1 {
			if b, ok := ir.AsBool(args[1]); ok {
				desc = b
			}
		}
		out := slices.Clone(arr)
		slices.SortStableFunc(out, func(a, b ir.Result) int {
			if desc {
				return ir.TotalCompare(b, a)
			}
			return ir.TotalCompare(a, b)
		})
		return out, nil
	case expr.FnReverse:
		out := slices.Clone(arr)
		slices.Reverse(out)
		return out, nil
	}
	return nil, qerror.InvalidOperation("%s is not an array function", fn)
}

// clampRange resolves python-style slice bounds.
func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	start = min(max(start, 0), n)
	end = min(max(end, 0), n)
	if end < start {
		end = start
	}
	return start, end
}

func objectFunc(fn expr.Func, subject ir.Result, rest []ir.Result) (ir.Result, error) {
	if ir.IsNull(subject) {
		return null, nil
	}
	obj, ok := subject.(ir.Object)
	if !ok {
		if fn == expr.FnField {
			return null, nil
		}
		return nil, qerror.TypeMismatch("%s expects an object, got %s", fn, ir.TypeName(subject))
	}
	names := make([]string, 0, len(rest))
	for i, a := range rest {
		if fn == expr.FnWithField && i == 1 {
			break
		}
		s, ok, err := stringArg(a, fn.String()+" name")
		if err != nil {
			return nil, err
		}
		if !ok {
			return null, nil
		}
		names = append(names, s)
	}

	switch fn {
	case expr.FnField:
		v, ok := obj.Get(names[0])
		if !ok {
			return null, nil
		}
		return v, nil
	case expr.FnRename:
		return obj.Rename(names[0], names[1]), nil
	case expr.FnWithField:
		return obj.With(names[0], rest[1]), nil
	case expr.FnWithout:
		return obj.Without(names...), nil
	case expr.FnKeys:
		out := make(ir.Array, len(obj.Fields))
		for i, f := range obj.Fields {
			out[i] = str(f.Name)
		}
		return out, nil
	case expr.FnValues:
		out := make(ir.Array, len(obj.Fields))
		for i, f := range obj.Fields {
			out[i] = f.Value
		}
		return out, nil
	}
	return nil, qerror.InvalidOperation("%s is not an object function", fn)
}
