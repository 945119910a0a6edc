// Package eval evaluates expressions against a document.
//
// An Evaluator is safe for concurrent use: evaluation is a pure recursive
// walk over immutable inputs. Contexts and binding chains are values that
// are extended, never mutated, so one compiled expression may be evaluated
// against many documents in parallel.
package eval

import (
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/tree"
)

// Doc is a navigable document: either a node of a Tree or a materialized
// ir.Result. Paths walk Docs without materializing untouched subtrees.
type Doc struct {
	t  tree.Tree
	id tree.NodeID
	r  ir.Result
}

// FromTree returns a Doc positioned at the root of t.
func FromTree(t tree.Tree) Doc { return Doc{t: t, id: t.Root()} }

// FromNode returns a Doc positioned at node id of t.
func FromNode(t tree.Tree, id tree.NodeID) Doc { return Doc{t: t, id: id} }

// FromResult wraps a materialized value.
func FromResult(r ir.Result) Doc { return Doc{r: r} }

// IsZero reports whether d refers to nothing.
func (d Doc) IsZero() bool { return d.t == nil && d.r == nil }

// Result materializes d. A zero Doc is null.
func (d Doc) Result() ir.Result {
	if d.t != nil {
		return tree.Materialize(d.t, d.id)
	}
	if d.r == nil {
		return null
	}
	if _, missing := d.r.(ir.Missing); missing {
		return null
	}
	return d.r
}

// IsArray reports whether d is an array.
func (d Doc) IsArray() bool {
	if d.t != nil {
		return d.t.Kind(d.id) == tree.KindArray
	}
	_, ok := d.r.(ir.Array)
	return ok
}

// IsObject reports whether d is an object.
func (d Doc) IsObject() bool {
	if d.t != nil {
		return d.t.Kind(d.id) == tree.KindObject
	}
	_, ok := d.r.(ir.Object)
	return ok
}

// IsNull reports whether d is null or absent.
func (d Doc) IsNull() bool {
	if d.t != nil {
		if d.t.Kind(d.id) != tree.KindScalar {
			return false
		}
		_, ok := d.t.Value(d.id).(ir.Null)
		return ok
	}
	return ir.IsNull(d.r)
}

// Len returns the number of children of an array or object.
func (d Doc) Len() int {
	if d.t != nil {
		if d.t.Kind(d.id) == tree.KindScalar {
			return 0
		}
		return d.t.Len(d.id)
	}
	switch v := d.r.(type) {
	case ir.Array:
		return len(v)
	case ir.Object:
		return len(v.Fields)
	}
	return 0
}

// Child returns the i-th array element or object value.
func (d Doc) Child(i int) Doc {
	if d.t != nil {
		return Doc{t: d.t, id: d.t.Child(d.id, i)}
	}
	switch v := d.r.(type) {
	case ir.Array:
		return Doc{r: v[i]}
	case ir.Object:
		return Doc{r: v.Fields[i].Value}
	}
	return Doc{}
}

// Field returns the named child of an object.
func (d Doc) Field(name string) (Doc, bool) {
	if d.t != nil {
		if d.t.Kind(d.id) != tree.KindObject {
			return Doc{}, false
		}
		id, ok := d.t.Field(d.id, name)
		if !ok {
			return Doc{}, false
		}
		return Doc{t: d.t, id: id}, true
	}
	obj, ok := d.r.(ir.Object)
	if !ok {
		return Doc{}, false
	}
	v, ok := obj.Get(name)
	if !ok {
		return Doc{}, false
	}
	return Doc{r: v}, true
}

// kindName names d's structure for error messages.
func (d Doc) kindName() string {
	if d.t != nil {
		switch d.t.Kind(d.id) {
		case tree.KindArray:
			return "array"
		case tree.KindObject:
			return "object"
		}
		return d.t.Value(d.id).Kind().String()
	}
	return ir.TypeName(d.r)
}
