package plan

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/logical"
	"github.com/roach88/treeq/internal/qerror"
)

// Validate checks p before it is optimized or run and reports every
// problem it finds, not just the first.
//
// It checks operator arguments (counts, names, mutation paths), infers
// every expression, requires filter predicates to be single booleans and
// keys to be single values, and resolves each $name against the Explode
// bindings in scope.
//
// The returned error is a *multierror.Error whose entries wrap
// *qerror.Error values, so qerror.KindOf works on each of them.
func Validate(p Plan) error {
	v := &validator{}
	if p == nil {
		v.add(nil, qerror.InvalidOperation("nil plan"))
		return v.errs.ErrorOrNil()
	}
	Walk(p, func(n Plan) bool {
		v.node(n)
		return true
	})
	return v.errs.ErrorOrNil()
}

type validator struct {
	errs *multierror.Error
}

func (v *validator) add(n Plan, err error) {
	if n != nil {
		err = fmt.Errorf("%s: %w", Label(n), err)
	}
	v.errs = multierror.Append(v.errs, err)
}

func (v *validator) node(n Plan) {
	src := SourceOf(n)
	if _, isScan := n.(Scan); !isScan && src == nil {
		v.add(n, qerror.InvalidOperation("missing source"))
	}

	switch n := n.(type) {
	case Scan:
		if n.Collection == "" {
			v.add(n, qerror.InvalidOperation("empty collection name"))
		}
	case Filter:
		if n.Predicate == nil {
			v.add(n, qerror.InvalidOperation("missing predicate"))
		} else if err := logical.ValidatePredicate(n.Predicate); err != nil {
			v.add(n, err)
		}
		if lim, ok := n.Limit.Get(); ok && lim < 0 {
			v.add(n, qerror.InvalidOperation("negative limit %d", lim))
		}
	case Head:
		v.count(n, n.N)
	case Tail:
		v.count(n, n.N)
	case Sample:
		v.count(n, n.N)
	case Sort:
		v.keys(n, n.Keys)
	case TopK:
		v.count(n, n.K)
		v.keys(n, n.Keys)
	case Select:
		if len(n.Fields) == 0 {
			v.add(n, qerror.InvalidOperation("select needs at least one field"))
		}
		v.fields(n, n.Fields)
	case AddFields:
		v.fields(n, n.Fields)
	case Explode:
		if n.Binding == "" {
			v.add(n, qerror.InvalidOperation("explode needs a binding name"))
		}
		v.infer(n, n.Expr)
	case GroupBy:
		if len(n.Keys) == 0 {
			v.add(n, qerror.InvalidOperation("group_by needs at least one key"))
		}
		for _, k := range n.Keys {
			v.scalar(n, k.Expr)
		}
		seen := v.names(n, n.Keys)
		v.aggs(n, n.Aggs, seen)
	case IndexBy:
		v.scalar(n, n.Key)
	case UniqueBy:
		v.scalar(n, n.Key)
	case Aggregate:
		if len(n.Aggs) == 0 {
			v.add(n, qerror.InvalidOperation("aggregate needs at least one aggregate"))
		}
		v.aggs(n, n.Aggs, map[string]bool{})
	case Append:
		v.mutationPath(n, n.Path)
		if len(n.Values) == 0 {
			v.add(n, qerror.InvalidOperation("append needs at least one value"))
		}
		for _, e := range n.Values {
			v.infer(n, e)
		}
	case Insert:
		v.mutationPath(n, n.Path)
		v.infer(n, n.Value)
	case Set:
		v.mutationPath(n, n.Path)
		v.infer(n, n.Value)
	case Remove:
		v.mutationPath(n, n.Path)
	}

	if src != nil {
		v.variables(n, Scope(src))
	}
}

func (v *validator) count(n Plan, c int) {
	if c < 0 {
		v.add(n, qerror.InvalidOperation("negative count %d", c))
	}
}

func (v *validator) keys(n Plan, keys []SortKey) {
	if len(keys) == 0 {
		v.add(n, qerror.InvalidOperation("needs at least one sort key"))
	}
	for _, k := range keys {
		v.scalar(n, k.Expr)
	}
}

// scalar requires e to yield one value per row.
func (v *validator) scalar(n Plan, e expr.Expr) {
	if e == nil {
		v.add(n, qerror.InvalidOperation("missing key expression"))
		return
	}
	if err := logical.ValidateScalar(e); err != nil {
		v.add(n, err)
	}
}

// fields checks names are present and unique and infers each expression.
func (v *validator) fields(n Plan, fields []NamedExpr) {
	v.names(n, fields)
	for _, f := range fields {
		v.infer(n, f.Expr)
	}
}

func (v *validator) names(n Plan, fields []NamedExpr) map[string]bool {
	seen := map[string]bool{}
	for _, f := range fields {
		v.name(n, f.Name, seen)
	}
	return seen
}

func (v *validator) aggs(n Plan, aggs []AggSpec, seen map[string]bool) {
	for _, a := range aggs {
		v.name(n, a.Name, seen)
		if a.Fn.Info().Family != expr.FamilyAggregate {
			v.add(n, qerror.InvalidOperation("%s is not an aggregate function", a.Fn))
		}
		if a.Arg != nil {
			v.infer(n, a.Arg)
		}
	}
}

func (v *validator) name(n Plan, name string, seen map[string]bool) {
	if name == "" {
		v.add(n, qerror.InvalidOperation("empty field name"))
		return
	}
	if seen[name] {
		v.add(n, qerror.InvalidOperation("duplicate field %q", name))
	}
	seen[name] = true
}

func (v *validator) infer(n Plan, e expr.Expr) {
	if e == nil {
		v.add(n, qerror.InvalidOperation("missing expression"))
		return
	}
	if _, err := logical.Infer(e); err != nil {
		v.add(n, err)
	}
}

// mutationPath requires a non-empty path of plain field names.
func (v *validator) mutationPath(n Plan, p expr.Path) {
	if p.Var != "" || len(p.Segments) == 0 {
		v.add(n, qerror.InvalidOperation("mutation path %q must name a field", p.String()))
		return
	}
	for _, s := range p.Segments {
		if s.Kind != expr.SegField {
			v.add(n, qerror.InvalidOperation("mutation path %q may only contain field names", p.String()))
			return
		}
	}
}

func (v *validator) variables(n Plan, scope []string) {
	for _, e := range Exprs(n) {
		if e == nil {
			continue
		}
		for _, name := range expr.FreeVars(e) {
			if !slices.Contains(scope, name) {
				v.add(n, qerror.New(qerror.KindUnknownVariable, "unbound variable $%s", name).
					WithPath(e.String()).
					WithHint("bind it with an explode step"))
			}
		}
	}
}

// MutationFields returns the field names of a mutation path.
func MutationFields(p expr.Path) []string {
	names := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		names = append(names, s.Name)
	}
	return names
}
