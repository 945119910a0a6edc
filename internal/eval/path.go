package eval

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

// evalPath navigates p from its root.
//
// Missing fields drop out of the working set. A fixed index outside the
// array fails with INDEX_OUT_OF_RANGE. Wildcard and filter segments make the
// result a vector, which is always an array, possibly empty. Otherwise zero
// surviving nodes yield null and one yields its value.
func (ev *Evaluator) evalPath(p expr.Path, ctx Context) (ir.Result, error) {
	segs := p.Segments
	var start Doc
	switch {
	case p.Absolute:
		start = ctx.root
	case p.Var != "":
		v, ok := ctx.bindings.Lookup(p.Var)
		if !ok {
			return nil, qerror.New(qerror.KindUnknownVariable, "unbound variable $%s", p.Var).WithPath(p.String())
		}
		start = FromResult(v)
	default:
		start = ctx.current()
		if len(segs) > 0 && segs[0].Kind == expr.SegCurrent {
			segs = segs[1:]
		}
	}

	nodes := []Doc{start}
	vector := false
	for _, s := range segs {
		var next []Doc
		switch s.Kind {
		case expr.SegField:
			for _, n := range nodes {
				if c, ok := n.Field(s.Name); ok {
					next = append(next, c)
				}
			}

		case expr.SegIndex:
			for _, n := range nodes {
				if n.IsNull() {
					continue
				}
				if !n.IsArray() {
					return nil, qerror.TypeMismatch("cannot index %s", n.kindName()).WithPath(p.String())
				}
				size := n.Len()
				i := s.Index
				if i < 0 {
					i += size
				}
				if i < 0 || i >= size {
					return nil, qerror.IndexOutOfRange(s.Index, size).WithPath(p.String())
				}
				next = append(next, n.Child(i))
			}

		case expr.SegWildcard:
			vector = true
			for _, n := range nodes {
				if n.IsArray() || n.IsObject() {
					for i := 0; i < n.Len(); i++ {
						next = append(next, n.Child(i))
					}
				}
			}

		case expr.SegFilter:
			vector = true
			for _, n := range nodes {
				candidates := []Doc{n}
				if n.IsArray() {
					candidates = make([]Doc, n.Len())
					for i := range candidates {
						candidates[i] = n.Child(i)
					}
				}
				for _, c := range candidates {
					keep, err := ev.eval(s.Filter, ctx.withElement(c))
					if err != nil {
						return nil, err
					}
					if ir.IsTrue(keep) {
						next = append(next, c)
					}
				}
			}

		case expr.SegCurrent:
			next = nodes
		}
		nodes = next
	}

	if vector {
		out := make(ir.Array, len(nodes))
		for i, n := range nodes {
			out[i] = n.Result()
		}
		return out, nil
	}
	switch len(nodes) {
	case 0:
		return null, nil
	case 1:
		return nodes[0].Result(), nil
	}
	out := make(ir.Array, len(nodes))
	for i, n := range nodes {
		out[i] = n.Result()
	}
	return out, nil
}
