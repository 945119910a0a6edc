package expr

import (
	"strconv"
	"strings"
)

// SegmentKind enumerates path segment types.
type SegmentKind uint8

const (
	// SegField selects a named child of an object.
	SegField SegmentKind = iota
	// SegIndex selects an array element; negative indices count from the end.
	SegIndex
	// SegWildcard fans out over all array elements or object values.
	SegWildcard
	// SegFilter keeps array elements whose predicate is exactly true.
	SegFilter
	// SegCurrent refers to the element bound by the enclosing filter.
	SegCurrent
)

// Segment is one step of a Path.
type Segment struct {
	Kind SegmentKind

	// Name is the field name for SegField.
	Name string
	// Quoted records that the field was written as ["name"].
	Quoted bool

	// Index is the element position for SegIndex.
	Index int

	// Filter is the predicate for SegFilter, evaluated with the element
	// bound as the current node. Source is its text as written.
	Filter Expr
	Source string
}

// Path is a compiled navigation expression.
//
// Exactly one root applies: Absolute ($), Var ($name), or relative to the
// current element when one is bound and the document root otherwise.
type Path struct {
	Absolute bool
	Var      string
	Segments []Segment
}

// Field returns a single-field path segment.
func Field(name string) Segment { return Segment{Kind: SegField, Name: name} }

// Index returns an index segment.
func Index(i int) Segment { return Segment{Kind: SegIndex, Index: i} }

// Wildcard returns a [*] segment.
func Wildcard() Segment { return Segment{Kind: SegWildcard} }

// FilterSeg returns a [?pred] segment.
func FilterSeg(pred Expr) Segment {
	return Segment{Kind: SegFilter, Filter: pred, Source: pred.String()}
}

// Current returns the @ segment.
func Current() Segment { return Segment{Kind: SegCurrent} }

// NewPath builds a relative path from segments.
func NewPath(segs ...Segment) Path { return Path{Segments: segs} }

// IsVector reports whether the path may yield more than one node.
func (p Path) IsVector() bool {
	for _, s := range p.Segments {
		if s.Kind == SegWildcard || s.Kind == SegFilter {
			return true
		}
	}
	return false
}

// IsElementRelative reports whether the path starts at the current element.
func (p Path) IsElementRelative() bool {
	return len(p.Segments) > 0 && p.Segments[0].Kind == SegCurrent
}

// RootField returns the first field name read from the root, if the path
// starts with a plain field.
func (p Path) RootField() (string, bool) {
	if p.Var != "" || len(p.Segments) == 0 || p.Segments[0].Kind != SegField {
		return "", false
	}
	return p.Segments[0].Name, true
}

// HasPrefix reports whether q's segments are a prefix of p's with the same root.
// Filter segments are compared by source text.
func (p Path) HasPrefix(q Path) bool {
	if p.Absolute != q.Absolute || p.Var != q.Var || len(q.Segments) > len(p.Segments) {
		return false
	}
	for i, s := range q.Segments {
		t := p.Segments[i]
		if s.Kind != t.Kind || s.Name != t.Name || s.Index != t.Index || s.Source != t.Source {
			return false
		}
	}
	return true
}

// Equal reports whether p and q are the same path.
func (p Path) Equal(q Path) bool {
	return len(p.Segments) == len(q.Segments) && p.HasPrefix(q)
}

// Append returns a new path with segs appended.
func (p Path) Append(segs ...Segment) Path {
	out := Path{Absolute: p.Absolute, Var: p.Var}
	out.Segments = make([]Segment, 0, len(p.Segments)+len(segs))
	out.Segments = append(out.Segments, p.Segments...)
	out.Segments = append(out.Segments, segs...)
	return out
}

// String renders the path in the form accepted by ParsePath.
func (p Path) String() string {
	var b strings.Builder
	rooted := false
	switch {
	case p.Absolute:
		b.WriteByte('$')
		rooted = true
	case p.Var != "":
		b.WriteByte('$')
		b.WriteString(p.Var)
		rooted = true
	}
	for i, s := range p.Segments {
		switch s.Kind {
		case SegField:
			if s.Quoted || !isIdent(s.Name) {
				b.WriteString("[")
				b.WriteString(strconv.Quote(s.Name))
				b.WriteString("]")
				continue
			}
			if i > 0 || rooted {
				b.WriteByte('.')
			}
			b.WriteString(s.Name)
		case SegIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
		case SegWildcard:
			b.WriteString("[*]")
		case SegFilter:
			b.WriteString("[?")
			if s.Source != "" {
				b.WriteString(s.Source)
			} else if s.Filter != nil {
				b.WriteString(s.Filter.String())
			}
			b.WriteByte(']')
		case SegCurrent:
			b.WriteByte('@')
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// reserved words cannot start a relative path.
var reserved = map[string]bool{
	"true": true, "false": true, "null": true,
	"and": true, "or": true, "not": true,
}
