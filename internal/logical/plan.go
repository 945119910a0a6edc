package logical

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/option"
)

// ExprID identifies a distinct subtree within a Plan.
type ExprID int32

// Node is one distinct subexpression of a Plan.
//
// Type, Shape and Card are None until Infer has run.
type Node struct {
	ID   ExprID
	Expr expr.Expr
	Kids []ExprID

	Type  option.Option[Type]
	Shape option.Option[Shape]
	Card  option.Option[Cardinality]
}

// Plan is the DAG of an expression's distinct subtrees.
// Nodes are stored in insertion order, children before parents.
type Plan struct {
	nodes []Node
	byKey map[string]ExprID
	root  ExprID
}

// Build lowers e into a DAG. Structurally identical subtrees share one node.
// Predicates inside path filter segments become children of their path.
func Build(e expr.Expr) *Plan {
	p := &Plan{byKey: map[string]ExprID{}}
	p.root = p.insert(e)
	return p
}

func (p *Plan) insert(e expr.Expr) ExprID {
	key := ir.HashWithDomain(ir.DomainExpr, []byte(e.String()))
	if id, ok := p.byKey[key]; ok {
		return id
	}
	var kids []ExprID
	for _, k := range dagChildren(e) {
		kids = append(kids, p.insert(k))
	}
	id := ExprID(len(p.nodes))
	p.nodes = append(p.nodes, Node{ID: id, Expr: e, Kids: kids})
	p.byKey[key] = id
	return id
}

func dagChildren(e expr.Expr) []expr.Expr {
	ref, ok := e.(expr.PathRef)
	if !ok {
		return expr.Children(e)
	}
	var preds []expr.Expr
	for _, s := range ref.Path.Segments {
		if s.Kind == expr.SegFilter && s.Filter != nil {
			preds = append(preds, s.Filter)
		}
	}
	return preds
}

// Root returns the id of the expression the plan was built from.
func (p *Plan) Root() ExprID { return p.root }

// Len returns the number of distinct subtrees.
func (p *Plan) Len() int { return len(p.nodes) }

// Node returns the node with the given id.
func (p *Plan) Node(id ExprID) Node { return p.nodes[id] }

// Lookup returns the id of a subtree equal to e, if present.
func (p *Plan) Lookup(e expr.Expr) (ExprID, bool) {
	id, ok := p.byKey[ir.HashWithDomain(ir.DomainExpr, []byte(e.String()))]
	return id, ok
}

// Infer fills the inferred slots of every node in topological order.
// It stops at the first node that cannot be typed.
func (p *Plan) Infer() error {
	for i := range p.nodes {
		n := &p.nodes[i]
		if n.Shape.IsSome() {
			continue
		}
		kids := make([]Shape, len(n.Kids))
		for j, k := range n.Kids {
			kids[j] = p.nodes[k].Shape.Unwrap()
		}
		s, err := inferNode(n.Expr, kids)
		if err != nil {
			return err
		}
		n.Shape = option.Some(s)
		n.Type = option.Some(TypeOf(s))
		n.Card = option.Some(CardinalityOf(s))
	}
	return nil
}

// Info is the inferred result description of one expression.
type Info struct {
	Type  Type
	Shape Shape
	Card  Cardinality
}

// InfoOf returns the inferred description of a node.
// Panics if Infer has not run.
func (p *Plan) InfoOf(id ExprID) Info {
	n := p.nodes[id]
	return Info{Type: n.Type.Unwrap(), Shape: n.Shape.Unwrap(), Card: n.Card.Unwrap()}
}

// Infer builds and infers e in one step.
func Infer(e expr.Expr) (Info, error) {
	p := Build(e)
	if err := p.Infer(); err != nil {
		return Info{}, err
	}
	return p.InfoOf(p.Root()), nil
}
