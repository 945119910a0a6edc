// Package tree defines the source/storage boundary consumed by the evaluator.
//
// A Tree exposes navigation by NodeID handle: kind, scalar value, and child
// lookup by field name or position. The core never mutates a Tree; operators
// that "mutate" documents produce new ir.Results instead.
//
// Memory is the in-memory arena implementation decoded from JSON or built
// from an ir.Result. Other collaborators (e.g. the SQLite store) hand out
// Memory trees as well.
package tree

import "github.com/roach88/treeq/internal/ir"

// NodeID addresses one node inside a Tree.
type NodeID int32

// NodeKind is the structural kind of a node.
type NodeKind uint8

const (
	// KindScalar is a leaf holding an ir.Value.
	KindScalar NodeKind = iota
	// KindArray is an ordered list of children.
	KindArray
	// KindObject is an ordered list of named children.
	KindObject
)

// Tree is a read-only hierarchical document.
type Tree interface {
	// Root returns the root node.
	Root() NodeID

	// Kind returns the structural kind of id.
	Kind(id NodeID) NodeKind

	// Value returns the scalar held by id. Non-scalar nodes return ir.Null.
	Value(id NodeID) ir.Value

	// Len returns the number of children of an array or object node.
	Len(id NodeID) int

	// Child returns the i-th child of an array or object node.
	Child(id NodeID, i int) NodeID

	// Name returns the name of the i-th field of an object node.
	Name(id NodeID, i int) string

	// Field looks up an object child by name.
	Field(id NodeID, name string) (NodeID, bool)
}

// Collection is an enumerable, indexable set of Trees.
type Collection interface {
	// Len returns the number of trees.
	Len() int

	// Tree returns the i-th tree, 0 <= i < Len().
	Tree(i int) Tree
}

// Materialize converts the subtree at id into an ir.Result.
func Materialize(t Tree, id NodeID) ir.Result {
	switch t.Kind(id) {
	case KindArray:
		n := t.Len(id)
		arr := make(ir.Array, n)
		for i := 0; i < n; i++ {
			arr[i] = Materialize(t, t.Child(id, i))
		}
		return arr
	case KindObject:
		n := t.Len(id)
		fields := make([]ir.Field, n)
		for i := 0; i < n; i++ {
			fields[i] = ir.Field{Name: t.Name(id, i), Value: Materialize(t, t.Child(id, i))}
		}
		return ir.Object{Fields: fields}
	}
	return ir.NewScalar(t.Value(id))
}

// Slice is a Collection backed by a slice of Trees.
type Slice []Tree

// Len implements Collection.
func (s Slice) Len() int { return len(s) }

// Tree implements Collection.
func (s Slice) Tree(i int) Tree { return s[i] }
