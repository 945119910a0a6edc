package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/plan"
)

// CompileDoc builds the plan described by doc. Errors name the offending
// field, e.g. "pipeline[2].sort[0].key".
func CompileDoc(doc QueryDoc) (plan.Plan, error) {
	if strings.TrimSpace(doc.From) == "" {
		return nil, &CompileError{Field: "from", Message: "source collection is required"}
	}

	b := plan.From(doc.From)
	for i, step := range doc.Pipeline {
		c := stepCompiler{field: fmt.Sprintf("pipeline[%d]", i)}
		next, err := c.compile(b, step)
		if err != nil {
			return nil, err
		}
		b = next
	}

	p := b.Plan()
	if err := plan.Validate(p); err != nil {
		return nil, &CompileError{Field: "pipeline", Message: err.Error(), Err: err}
	}
	return p, nil
}

// stepCompiler compiles one pipeline step, tracking the field path for
// error messages.
type stepCompiler struct {
	field string
}

func (c stepCompiler) errorf(sub, format string, args ...any) error {
	return &CompileError{Field: c.field + sub, Message: fmt.Sprintf(format, args...)}
}

func (c stepCompiler) expr(sub, src string) (expr.Expr, error) {
	e, err := expr.Parse(src)
	if err != nil {
		return nil, &CompileError{Field: c.field + sub, Message: err.Error(), Err: err}
	}
	return e, nil
}

func (c stepCompiler) path(sub, src string) (expr.Path, error) {
	p, err := expr.ParsePath(src)
	if err != nil {
		return expr.Path{}, &CompileError{Field: c.field + sub, Message: err.Error(), Err: err}
	}
	return p, nil
}

func (c stepCompiler) compile(b plan.Builder, s Step) (plan.Builder, error) {
	ops := s.operators()
	switch {
	case len(ops) == 0:
		return b, c.errorf("", "step has no operator")
	case len(ops) > 1:
		return b, c.errorf("", "step has several operators: %s", strings.Join(ops, ", "))
	case s.Limit != nil && s.Filter == nil:
		return b, c.errorf(".limit", "limit only applies to filter")
	}

	switch {
	case s.Filter != nil:
		pred, err := c.expr(".filter", *s.Filter)
		if err != nil {
			return b, err
		}
		if s.Limit != nil {
			return b.FilterLimit(pred, *s.Limit), nil
		}
		return b.Filter(pred), nil

	case s.Head != nil:
		return b.Head(*s.Head), nil

	case s.Tail != nil:
		return b.Tail(*s.Tail), nil

	case s.Take != nil:
		return b.Take(s.Take...), nil

	case s.Sample != nil:
		return b.Sample(s.Sample.N, s.Sample.Seed), nil

	case s.Shuffle != nil:
		return b.Shuffle(s.Shuffle.Seed), nil

	case s.Sort != nil:
		keys, err := c.sortKeys(".sort", s.Sort)
		if err != nil {
			return b, err
		}
		return b.Sort(keys...), nil

	case s.TopK != nil:
		keys, err := c.sortKeys(".topk.by", s.TopK.By)
		if err != nil {
			return b, err
		}
		return b.TopK(s.TopK.K, keys...), nil

	case s.Select != nil:
		fields, err := c.fields(".select", s.Select)
		if err != nil {
			return b, err
		}
		return b.Select(fields...), nil

	case s.AddFields != nil:
		fields, err := c.fields(".add_fields", s.AddFields)
		if err != nil {
			return b, err
		}
		return b.AddFields(fields...), nil

	case s.Explode != nil:
		e, err := c.expr(".explode.path", s.Explode.Path)
		if err != nil {
			return b, err
		}
		return b.Explode(e, s.Explode.As), nil

	case s.GroupBy != nil:
		keys, err := c.fields(".group_by.keys", s.GroupBy.Keys)
		if err != nil {
			return b, err
		}
		aggs, err := c.aggs(".group_by.aggs", s.GroupBy.Aggs)
		if err != nil {
			return b, err
		}
		return b.GroupBy(keys, aggs...), nil

	case s.IndexBy != nil:
		key, err := c.expr(".index_by", *s.IndexBy)
		if err != nil {
			return b, err
		}
		return b.IndexBy(key), nil

	case s.UniqueBy != nil:
		key, err := c.expr(".unique_by", *s.UniqueBy)
		if err != nil {
			return b, err
		}
		return b.UniqueBy(key), nil

	case s.Aggregate != nil:
		aggs, err := c.aggs(".aggregate", s.Aggregate)
		if err != nil {
			return b, err
		}
		return b.Aggregate(aggs...), nil

	case s.Append != nil:
		p, err := c.path(".append.path", s.Append.Path)
		if err != nil {
			return b, err
		}
		values := make([]expr.Expr, len(s.Append.Values))
		for i, src := range s.Append.Values {
			if values[i], err = c.expr(fmt.Sprintf(".append.values[%d]", i), src); err != nil {
				return b, err
			}
		}
		return plan.On(plan.Append{Source: b.Plan(), Path: p, Values: values}), nil

	case s.Insert != nil:
		p, err := c.path(".insert.path", s.Insert.Path)
		if err != nil {
			return b, err
		}
		v, err := c.expr(".insert.value", s.Insert.Value)
		if err != nil {
			return b, err
		}
		return plan.On(plan.Insert{Source: b.Plan(), Path: p, Index: s.Insert.Index, Value: v}), nil

	case s.Set != nil:
		p, err := c.path(".set.path", s.Set.Path)
		if err != nil {
			return b, err
		}
		v, err := c.expr(".set.value", s.Set.Value)
		if err != nil {
			return b, err
		}
		return plan.On(plan.Set{Source: b.Plan(), Path: p, Value: v}), nil

	default: // s.Remove != nil
		p, err := c.path(".remove", *s.Remove)
		if err != nil {
			return b, err
		}
		return plan.On(plan.Remove{Source: b.Plan(), Path: p}), nil
	}
}

func (c stepCompiler) sortKeys(sub string, keys []SortKey) ([]plan.SortKey, error) {
	out := make([]plan.SortKey, len(keys))
	for i, k := range keys {
		e, err := c.expr(fmt.Sprintf("%s[%d].key", sub, i), k.Key)
		if err != nil {
			return nil, err
		}
		out[i] = plan.SortKey{Expr: e, Desc: k.Desc}
	}
	return out, nil
}

func (c stepCompiler) fields(sub string, fields []Field) ([]plan.NamedExpr, error) {
	out := make([]plan.NamedExpr, len(fields))
	for i, f := range fields {
		e, err := c.expr(fmt.Sprintf("%s[%d].expr", sub, i), f.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = plan.As(f.Name, e)
	}
	return out, nil
}

func (c stepCompiler) aggs(sub string, aggs []Agg) ([]plan.AggSpec, error) {
	out := make([]plan.AggSpec, len(aggs))
	for i, a := range aggs {
		fn, ok := expr.LookupFunc(a.Fn)
		if !ok || fn.Info().Family != expr.FamilyAggregate {
			return nil, c.errorf(fmt.Sprintf("%s[%d].fn", sub, i), "%q is not an aggregate function", a.Fn)
		}
		var arg expr.Expr
		if a.Arg != "" {
			e, err := c.expr(fmt.Sprintf("%s[%d].arg", sub, i), a.Arg)
			if err != nil {
				return nil, err
			}
			arg = e
		}
		out[i] = plan.Agg(a.Name, fn, arg)
	}
	return out, nil
}
