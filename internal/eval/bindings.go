package eval

import "github.com/roach88/treeq/internal/ir"

// Bindings is a persistent chain of named values. Extending it allocates
// one frame that points at its parent; existing chains are never modified.
// The nil *Bindings is the empty chain.
type Bindings struct {
	name   string
	value  ir.Result
	parent *Bindings
}

// With returns a chain with name bound to v in front of b.
func (b *Bindings) With(name string, v ir.Result) *Bindings {
	return &Bindings{name: name, value: v, parent: b}
}

// Lookup resolves name from the innermost frame outward.
func (b *Bindings) Lookup(name string) (ir.Result, bool) {
	for f := b; f != nil; f = f.parent {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Names returns the visible names, innermost first.
func (b *Bindings) Names() []string {
	var names []string
	seen := map[string]bool{}
	for f := b; f != nil; f = f.parent {
		if !seen[f.name] {
			seen[f.name] = true
			names = append(names, f.name)
		}
	}
	return names
}

// Context is the environment an expression is evaluated in: the document
// root, the element bound by an enclosing path filter, and the bindings.
// Contexts are small values; the With methods return extended copies.
type Context struct {
	root     Doc
	element  Doc
	bindings *Bindings
}

// NewContext returns a context rooted at doc with no bindings.
func NewContext(doc Doc) Context { return Context{root: doc} }

// Root returns the document root.
func (c Context) Root() Doc { return c.root }

// Bindings returns the binding chain.
func (c Context) Bindings() *Bindings { return c.bindings }

// WithBindings returns a copy of c using b as its chain.
func (c Context) WithBindings(b *Bindings) Context {
	c.bindings = b
	return c
}

// Bind returns a copy of c with name bound to v.
func (c Context) Bind(name string, v ir.Result) Context {
	c.bindings = c.bindings.With(name, v)
	return c
}

func (c Context) withElement(d Doc) Context {
	c.element = d
	return c
}

// current is the element bound by a path filter, or the root.
func (c Context) current() Doc {
	if !c.element.IsZero() {
		return c.element
	}
	return c.root
}
