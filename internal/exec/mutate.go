package exec

import (
	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/plan"
	"github.com/roach88/treeq/internal/qerror"
)

// updateFunc computes the new value of the field at the end of a path.
// old is Missing when the field is absent.
type updateFunc func(old ir.Result) (ir.Result, error)

// mutate applies Append, Insert, Set or Remove to every row. Values are
// evaluated against the row before it changes.
func (x *Executor) mutate(in []Row, p plan.Plan) ([]Row, error) {
	out := make([]Row, len(in))
	for i, r := range in {
		doc, err := x.mutateRow(r, p)
		if err != nil {
			return nil, err
		}
		out[i] = Row{Doc: eval.FromResult(doc), Bindings: r.Bindings}
	}
	return out, nil
}

func (x *Executor) mutateRow(r Row, p plan.Plan) (ir.Result, error) {
	root := r.Doc.Result()
	if _, ok := root.(ir.Object); !ok {
		return nil, qerror.TypeMismatch("cannot modify fields of %s", ir.TypeName(root))
	}

	switch n := p.(type) {
	case plan.Set:
		v, err := x.eval(n.Value, r)
		if err != nil {
			return nil, err
		}
		return update(root, plan.MutationFields(n.Path), func(ir.Result) (ir.Result, error) {
			return orNull(v), nil
		})

	case plan.Append:
		values := make([]ir.Result, len(n.Values))
		for i, e := range n.Values {
			v, err := x.eval(e, r)
			if err != nil {
				return nil, err
			}
			values[i] = orNull(v)
		}
		return update(root, plan.MutationFields(n.Path), func(old ir.Result) (ir.Result, error) {
			arr, err := targetArray(old, n.Path.String())
			if err != nil {
				return nil, err
			}
			return append(arr, values...), nil
		})

	case plan.Insert:
		v, err := x.eval(n.Value, r)
		if err != nil {
			return nil, err
		}
		return update(root, plan.MutationFields(n.Path), func(old ir.Result) (ir.Result, error) {
			arr, err := targetArray(old, n.Path.String())
			if err != nil {
				return nil, err
			}
			at := n.Index
			if at < 0 {
				at += len(arr)
			}
			at = max(0, min(at, len(arr)))
			out := make(ir.Array, 0, len(arr)+1)
			out = append(out, arr[:at]...)
			out = append(out, orNull(v))
			return append(out, arr[at:]...), nil
		})

	case plan.Remove:
		return remove(root, plan.MutationFields(n.Path)), nil
	}
	return root, nil
}

// targetArray returns a copy of the array being appended to. An absent or
// null target starts empty.
func targetArray(old ir.Result, path string) (ir.Array, error) {
	if ir.IsNull(old) {
		return ir.Array{}, nil
	}
	arr, ok := old.(ir.Array)
	if !ok {
		return nil, qerror.TypeMismatch("cannot append to %s", ir.TypeName(old)).WithPath(path)
	}
	return append(ir.Array{}, arr...), nil
}

// update rewrites the field at names, creating intermediate objects where
// the path is absent or null.
func update(cur ir.Result, names []string, fn updateFunc) (ir.Result, error) {
	var obj ir.Object
	switch v := cur.(type) {
	case ir.Object:
		obj = v
	default:
		if !ir.IsNull(cur) {
			return nil, qerror.TypeMismatch("cannot set field %q on %s", names[0], ir.TypeName(cur))
		}
		obj = ir.NewObject()
	}

	old, ok := obj.Get(names[0])
	if !ok {
		old = ir.Missing{}
	}
	var (
		next ir.Result
		err  error
	)
	if len(names) == 1 {
		next, err = fn(old)
	} else {
		next, err = update(old, names[1:], fn)
	}
	if err != nil {
		return nil, err
	}
	return obj.With(names[0], next), nil
}

// remove deletes the field at names. Absent paths leave cur unchanged.
func remove(cur ir.Result, names []string) ir.Result {
	obj, ok := cur.(ir.Object)
	if !ok {
		return cur
	}
	if len(names) == 1 {
		return obj.Without(names[0])
	}
	child, ok := obj.Get(names[0])
	if !ok {
		return cur
	}
	return obj.With(names[0], remove(child, names[1:]))
}
