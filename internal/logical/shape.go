// Package logical infers the type, shape and cardinality of expressions
// before any data is touched, and rejects expressions that cannot be used in
// their context.
//
// Expressions are lowered into a DAG (Plan) whose nodes are distinct
// subtrees keyed by content hash. Inference runs once over the nodes in
// insertion order, which is topological: each node's result is a pure
// function of its kind and its children's results.
package logical

import (
	"strings"

	"github.com/roach88/treeq/internal/ir"
)

// Type is the inferred scalar type.
type Type uint8

const (
	TypeAny Type = iota
	TypeNull
	TypeBool
	TypeInt
	TypeFloat
	// TypeNumber is Int or Float, decided at evaluation.
	TypeNumber
	TypeString
	TypeDate
	TypeDateTime
	TypeDuration
	TypeBinary
)

var typeNames = [...]string{
	TypeAny:      "Any",
	TypeNull:     "Null",
	TypeBool:     "Bool",
	TypeInt:      "Int",
	TypeFloat:    "Float",
	TypeNumber:   "Number",
	TypeString:   "String",
	TypeDate:     "Date",
	TypeDateTime: "DateTime",
	TypeDuration: "Duration",
	TypeBinary:   "Binary",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Invalid"
}

// IsNumeric reports whether t is Int, Float or Number.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeNumber
}

// TypeOfKind maps a runtime scalar kind to its static type.
func TypeOfKind(k ir.Kind) Type {
	switch k {
	case ir.KindNull:
		return TypeNull
	case ir.KindBool:
		return TypeBool
	case ir.KindInt:
		return TypeInt
	case ir.KindFloat:
		return TypeFloat
	case ir.KindString:
		return TypeString
	case ir.KindDate:
		return TypeDate
	case ir.KindDateTime:
		return TypeDateTime
	case ir.KindDuration:
		return TypeDuration
	case ir.KindBinary:
		return TypeBinary
	}
	return TypeAny
}

// Cardinality is the coarse projection of a Shape: one value per input tree
// or a sequence.
type Cardinality uint8

const (
	CardScalar Cardinality = iota
	CardVector
)

func (c Cardinality) String() string {
	if c == CardVector {
		return "Vector"
	}
	return "Scalar"
}

// Shape is the inferred nested structure of a result.
//
// This is a sealed interface - only types in this package implement it.
type Shape interface {
	String() string
	shape()
}

// ScalarShape is a single value of a known or Any type.
type ScalarShape struct {
	Type Type
}

func (ScalarShape) shape() {}

func (s ScalarShape) String() string { return "Scalar(" + s.Type.String() + ")" }

// ListShape is a sequence of elements of one shape.
type ListShape struct {
	Elem Shape
}

func (ListShape) shape() {}

func (s ListShape) String() string { return "List(" + s.Elem.String() + ")" }

// FieldShape is a named member of a StructShape.
type FieldShape struct {
	Name  string
	Shape Shape
}

// StructShape is an object with known fields, in declaration order.
type StructShape struct {
	Fields []FieldShape
}

func (StructShape) shape() {}

func (s StructShape) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Shape.String()
	}
	return "Struct{" + strings.Join(parts, ", ") + "}"
}

// Field returns the shape of a named field.
func (s StructShape) Field(name string) (Shape, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Shape, true
		}
	}
	return nil, false
}

// UnknownShape is a result whose structure cannot be determined statically.
type UnknownShape struct{}

func (UnknownShape) shape() {}

func (UnknownShape) String() string { return "Unknown" }

// Common shapes.
var (
	AnyScalar  Shape = ScalarShape{Type: TypeAny}
	BoolScalar Shape = ScalarShape{Type: TypeBool}
	AnyList    Shape = ListShape{Elem: AnyScalar}
)

// CardinalityOf projects a shape onto its cardinality.
func CardinalityOf(s Shape) Cardinality {
	if _, ok := s.(ListShape); ok {
		return CardVector
	}
	return CardScalar
}

// TypeOf returns the scalar type of s, or the element type of a list of
// scalars, or TypeAny.
func TypeOf(s Shape) Type {
	switch s := s.(type) {
	case ScalarShape:
		return s.Type
	case ListShape:
		return TypeOf(s.Elem)
	}
	return TypeAny
}

// ShapeEqual compares shapes structurally.
func ShapeEqual(a, b Shape) bool {
	return a.String() == b.String()
}

// Unify returns the narrowest shape describing both a and b.
func Unify(a, b Shape) Shape {
	if ShapeEqual(a, b) {
		return a
	}
	if sa, ok := a.(ScalarShape); ok {
		if sb, ok := b.(ScalarShape); ok {
			return ScalarShape{Type: unifyTypes(sa.Type, sb.Type)}
		}
		if sa.Type == TypeNull {
			return b
		}
	}
	if sb, ok := b.(ScalarShape); ok && sb.Type == TypeNull {
		return a
	}
	if la, ok := a.(ListShape); ok {
		if lb, ok := b.(ListShape); ok {
			return ListShape{Elem: Unify(la.Elem, lb.Elem)}
		}
	}
	return UnknownShape{}
}

func unifyTypes(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a == TypeNull:
		return b
	case b == TypeNull:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return TypeNumber
	}
	return TypeAny
}
