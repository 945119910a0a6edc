package ir

// Result is a sealed interface representing the outcome of evaluating an
// expression against one tree or element.
//
// Result types:
//   - Missing: no value at all (e.g. a path that matched nothing)
//   - Scalar: a single Value, possibly Null
//   - Array: an ordered sequence of Results
//   - Object: insertion-ordered named Results with unique names
type Result interface {
	irResult() // Sealed - only these types implement it
}

// Missing is the "no value" result.
// It is distinct from Scalar{Null} but behaves identically under arithmetic.
type Missing struct{}

func (Missing) irResult() {}

// Scalar wraps a single Value.
type Scalar struct {
	Value Value
}

func (Scalar) irResult() {}

// Array is an ordered sequence of Results.
type Array []Result

func (Array) irResult() {}

// Field is one named member of an Object.
type Field struct {
	Name  string
	Value Result
}

// Object is an insertion-ordered collection of uniquely named Results.
// Construct with NewObject to enforce unique names.
type Object struct {
	Fields []Field
}

func (Object) irResult() {}

// NewScalar wraps v as a Result.
func NewScalar(v Value) Scalar {
	return Scalar{Value: v}
}

// NewArray creates an Array from results.
func NewArray(items ...Result) Array {
	if items == nil {
		return Array{}
	}
	return Array(items)
}

// F is a shorthand for Field for ergonomic construction.
// Example: NewObject(F("name", NewScalar(String("cart"))), F("count", NewScalar(Int(5))))
func F(name string, value Result) Field {
	return Field{Name: name, Value: value}
}

// NewObject creates an Object from fields.
// A repeated name keeps its first position and takes the last value.
func NewObject(fields ...Field) Object {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		replaced := false
		for i := range out {
			if out[i].Name == f.Name {
				out[i].Value = f.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return Object{Fields: out}
}

// Get returns the named field's value.
func (o Object) Get(name string) (Result, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns field names in insertion order.
func (o Object) Keys() []string {
	keys := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		keys[i] = f.Name
	}
	return keys
}

// With returns a copy of o with name set to value.
// An existing field keeps its position.
func (o Object) With(name string, value Result) Object {
	out := make([]Field, len(o.Fields), len(o.Fields)+1)
	copy(out, o.Fields)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return Object{Fields: out}
		}
	}
	return Object{Fields: append(out, Field{Name: name, Value: value})}
}

// Without returns a copy of o with the named fields removed.
func (o Object) Without(names ...string) Object {
	out := make([]Field, 0, len(o.Fields))
	for _, f := range o.Fields {
		drop := false
		for _, n := range names {
			if f.Name == n {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	return Object{Fields: out}
}

// Rename returns a copy of o with field from renamed to to.
// If to already exists it is replaced; a missing from is a no-op.
func (o Object) Rename(from, to string) Object {
	v, ok := o.Get(from)
	if !ok || from == to {
		return o
	}
	out := make([]Field, 0, len(o.Fields))
	for _, f := range o.Fields {
		switch f.Name {
		case from:
			out = append(out, Field{Name: to, Value: v})
		case to:
			// dropped, replaced by the renamed field
		default:
			out = append(out, f)
		}
	}
	return Object{Fields: out}
}

// IsNull reports whether r is Missing or Scalar{Null}.
func IsNull(r Result) bool {
	switch v := r.(type) {
	case nil, Missing:
		return true
	case Scalar:
		_, isNull := v.Value.(Null)
		return isNull
	}
	return false
}

// AsBool returns the boolean held by a Scalar{Bool}.
func AsBool(r Result) (bool, bool) {
	if s, ok := r.(Scalar); ok {
		if b, ok := s.Value.(Bool); ok {
			return bool(b), true
		}
	}
	return false, false
}

// IsTrue reports whether r is exactly Scalar{Bool(true)}.
func IsTrue(r Result) bool {
	b, ok := AsBool(r)
	return ok && b
}

// TypeName names the shape of r for TypeOf and error messages.
func TypeName(r Result) string {
	switch v := r.(type) {
	case nil, Missing:
		return "null"
	case Scalar:
		return v.Value.Kind().String()
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}
