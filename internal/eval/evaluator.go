package eval

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

// DefaultRegexCacheSize bounds the compiled-pattern cache.
const DefaultRegexCacheSize = 256

var null ir.Result = ir.NewScalar(ir.Null{})

// Evaluator turns expressions into results.
type Evaluator struct {
	regexes *lru.Cache[string, *regexp.Regexp]
}

// Option configures an Evaluator.
type Option func(*evaluatorConfig)

type evaluatorConfig struct {
	regexCacheSize int
}

// WithRegexCacheSize sets how many compiled patterns are retained.
// Zero disables caching.
func WithRegexCacheSize(n int) Option {
	return func(c *evaluatorConfig) { c.regexCacheSize = n }
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	cfg := evaluatorConfig{regexCacheSize: DefaultRegexCacheSize}
	for _, o := range opts {
		o(&cfg)
	}
	ev := &Evaluator{}
	if cfg.regexCacheSize > 0 {
		// lru.New only fails for non-positive sizes
		if cache, err := lru.New[string, *regexp.Regexp](cfg.regexCacheSize); err == nil {
			ev.regexes = cache
		}
	}
	return ev
}

// Eval evaluates e in ctx.
func (ev *Evaluator) Eval(e expr.Expr, ctx Context) (ir.Result, error) {
	return ev.eval(e, ctx)
}

// EvalDoc evaluates e against a single document with no bindings.
func (ev *Evaluator) EvalDoc(e expr.Expr, doc Doc) (ir.Result, error) {
	return ev.eval(e, NewContext(doc))
}

func (ev *Evaluator) eval(e expr.Expr, ctx Context) (ir.Result, error) {
	switch e := e.(type) {
	case expr.Literal:
		if e.Value == nil {
			return null, nil
		}
		return ir.NewScalar(e.Value), nil

	case expr.PathRef:
		return ev.evalPath(e.Path, ctx)

	case expr.Variable:
		v, ok := ctx.bindings.Lookup(e.Name)
		if !ok {
			return nil, qerror.New(qerror.KindUnknownVariable, "unbound variable $%s", e.Name)
		}
		return v, nil

	case expr.Binary:
		if e.Op.IsLogical() {
			return ev.evalLogical(e, ctx)
		}
		l, err := ev.eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return binary(e, l, r)

	case expr.Unary:
		v, err := ev.eval(e.Operand, ctx)
		if err != nil {
			return nil, err
		}
		if e.Op == expr.OpNot {
			return not(v, e)
		}
		return mapVector(expr.IsVector(e.Operand), v, func(x ir.Result) (ir.Result, error) {
			return negate(x, e)
		})

	case expr.Call:
		return ev.call(e, ctx)

	case expr.Coalesce:
		for _, a := range e.Args {
			v, err := ev.eval(a, ctx)
			if err != nil {
				return nil, err
			}
			if !ir.IsNull(v) {
				return v, nil
			}
		}
		return null, nil

	case expr.When:
		ok, err := ev.condition(e.Cond, ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev.eval(e.Then, ctx)
		}
		if e.Else == nil {
			return null, nil
		}
		return ev.eval(e.Else, ctx)

	case expr.Case:
		for _, b := range e.Branches {
			ok, err := ev.condition(b.Cond, ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				return ev.eval(b.Value, ctx)
			}
		}
		if e.Else == nil {
			return null, nil
		}
		return ev.eval(e.Else, ctx)

	case expr.Cast:
		v, err := ev.eval(e.Operand, ctx)
		if err != nil {
			return nil, err
		}
		return mapVector(expr.IsVector(e.Operand), v, func(x ir.Result) (ir.Result, error) {
			out, err := Cast(x, e.To)
			if err != nil {
				return nil, withPath(err, e)
			}
			return out, nil
		})

	case expr.ArrayFilter:
		v, err := ev.eval(e.Array, ctx)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(ir.Array)
		if !ok {
			return v, nil
		}
		out := ir.Array{}
		for _, elem := range arr {
			keep, err := ev.eval(e.Predicate, ctx.Bind(e.Binding, elem))
			if err != nil {
				return nil, err
			}
			if ir.IsTrue(keep) {
				out = append(out, elem)
			}
		}
		return out, nil

	case expr.ArrayMap:
		v, err := ev.eval(e.Array, ctx)
		if err != nil {
			return nil, err
		}
		elems := vectorItems(v)
		out := make(ir.Array, 0, len(elems))
		for _, elem := range elems {
			m, err := ev.eval(e.Body, ctx.Bind(e.Binding, elem))
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil

	case expr.Let:
		v, err := ev.eval(e.Value, ctx)
		if err != nil {
			return nil, err
		}
		return ev.eval(e.Body, ctx.Bind(e.Name, v))

	case expr.ArrayCtor:
		out := make(ir.Array, 0, len(e.Items))
		for _, item := range e.Items {
			v, err := ev.eval(item, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case expr.ObjectCtor:
		fields := make([]ir.Field, 0, len(e.Fields))
		for _, f := range e.Fields {
			v, err := ev.eval(f.Value, ctx)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ir.F(f.Name, v))
		}
		return ir.NewObject(fields...), nil
	}
	panic(fmt.Sprintf("eval: unknown expression %T", e))
}

// condition evaluates a When/Case condition: true selects the branch,
// false and null skip it.
func (ev *Evaluator) condition(cond expr.Expr, ctx Context) (bool, error) {
	v, err := ev.eval(cond, ctx)
	if err != nil {
		return false, err
	}
	b, isNull, err := truth(v, cond)
	if err != nil {
		return false, err
	}
	return b && !isNull, nil
}

// vectorItems returns the elements of a vector result. Null is empty and
// any other single value is a one-element vector.
func vectorItems(v ir.Result) []ir.Result {
	switch v := v.(type) {
	case ir.Array:
		return v
	case nil, ir.Missing:
		return nil
	}
	if ir.IsNull(v) {
		return nil
	}
	return []ir.Result{v}
}

// mapVector applies fn elementwise when vector is set, otherwise once.
func mapVector(vector bool, v ir.Result, fn func(ir.Result) (ir.Result, error)) (ir.Result, error) {
	if !vector {
		return fn(v)
	}
	items := vectorItems(v)
	out := make(ir.Array, len(items))
	for i, item := range items {
		r, err := fn(item)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// withPath annotates a query error with the expression it came from,
// unless it already names one.
func withPath(err error, e expr.Expr) error {
	qe, ok := err.(*qerror.Error)
	if !ok || qe.Path != "" {
		return err
	}
	return qe.WithPath(e.String())
}
