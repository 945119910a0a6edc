package expr

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/treeq/internal/ir"
	"github.com/roach88/treeq/internal/qerror"
)

// maxDepth bounds parser recursion on hostile input.
const maxDepth = 256

// Parse parses an expression in surface syntax.
func Parse(src string) (Expr, error) {
	p := &parser{src: src}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.rest())
	}
	return e, nil
}

// MustParse is like Parse but panics on error. For tests and static tables.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// ParsePath compiles a path string such as "items[*].price" or "@.qty".
func ParsePath(src string) (Path, error) {
	p := &parser{src: src}
	path, err := p.parsePath()
	if err != nil {
		return Path{}, err
	}
	if !p.eof() {
		return Path{}, p.errorf("unexpected %q", p.rest())
	}
	return path, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(src string) Path {
	path, err := ParsePath(src)
	if err != nil {
		panic(err)
	}
	return path
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return qerror.PathParse(p.src, p.pos, format, args...)
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.peekAt(0) }

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) rest() string {
	r := p.src[p.pos:]
	if len(r) > 16 {
		r = r[:16] + "..."
	}
	return r
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	p.skipSpace()
	if !p.consume(s) {
		if p.eof() {
			return p.errorf("expected %q, got end of input", s)
		}
		return p.errorf("expected %q", s)
	}
	return nil
}

// keyword consumes word if it appears as a whole identifier.
func (p *parser) keyword(word string) bool {
	if !strings.HasPrefix(p.src[p.pos:], word) || isIdentChar(p.peekAt(len(word))) {
		return false
	}
	p.pos += len(word)
	return true
}

func (p *parser) ident() string {
	start := p.pos
	if !isIdentStart(p.peek()) {
		return ""
	}
	for !p.eof() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if !p.keyword("or") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpOr, Left: left, Right: right}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if !p.keyword("and") {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, Left: left, Right: right}
	}
}

func (p *parser) parseNot() (Expr, error) {
	p.skipSpace()
	if !p.keyword("not") {
		return p.parseComparison()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return Unary{Op: OpNot, Operand: operand}, nil
}

var comparisonOps = []struct {
	text string
	op   BinaryOp
}{
	{"==", OpEq}, {"!=", OpNe}, {"<=", OpLe}, {">=", OpGe}, {"<", OpLt}, {">", OpGt},
}

func (p *parser) comparisonOp() (BinaryOp, bool) {
	for _, c := range comparisonOps {
		if p.consume(c.text) {
			return c.op, true
		}
	}
	return 0, false
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	op, ok := p.comparisonOp()
	if !ok {
		return left, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	save := p.pos
	if _, again := p.comparisonOp(); again {
		p.pos = save
		return nil, p.errorf("comparisons do not chain; combine them with and")
	}
	return Binary{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		var op BinaryOp
		switch p.peek() {
		case '+':
			op = OpAdd
		case '-':
			op = OpSub
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		var op BinaryOp
		switch p.peek() {
		case '*':
			op = OpMul
		case '/':
			op = OpDiv
		case '%':
			op = OpMod
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	p.skipSpace()
	if p.peek() != '-' {
		return p.parsePrimary()
	}
	p.pos++
	if isDigit(p.peek()) {
		return p.parseNumber(true)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return Unary{Op: OpNeg, Operand: operand}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return Literal{Value: ir.String(s)}, nil
	case isDigit(c):
		return p.parseNumber(false)
	case c == '[':
		return p.parseArrayCtor()
	case c == '{':
		return p.parseObjectCtor()
	case c == '.' && p.peekAt(1) == '[':
		// relative path starting with a bracket segment
		p.pos++
		path, err := p.parseSegments(Path{})
		if err != nil {
			return nil, err
		}
		return PathRef{Path: path}, nil
	case c == '$' || c == '@':
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if path.Var != "" && len(path.Segments) == 0 {
			return Variable{Name: path.Var}, nil
		}
		return PathRef{Path: path}, nil
	case isIdentStart(c):
		start := p.pos
		name := p.ident()
		if p.peek() == '(' {
			return p.parseCall(name, start)
		}
		switch name {
		case "true":
			return Literal{Value: ir.Bool(true)}, nil
		case "false":
			return Literal{Value: ir.Bool(false)}, nil
		case "null":
			return Literal{Value: ir.Null{}}, nil
		}
		p.pos = start
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return PathRef{Path: path}, nil
	}
	return nil, p.errorf("unexpected character %q", c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *parser) parseNumber(negative bool) (Expr, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if p.peek() == '.' && isDigit(p.peekAt(1)) {
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		save := p.pos
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		if !isDigit(p.peek()) {
			p.pos = save
		}
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	text := p.src[start:p.pos]
	if negative {
		text = "-" + text
	}
	return Literal{Value: ir.ParseNumber(text)}, nil
}

func (p *parser) parseString() (string, error) {
	start := p.pos
	i := p.pos + 1
	for i < len(p.src) && p.src[i] != '"' {
		if p.src[i] == '\\' {
			i++
		}
		i++
	}
	if i >= len(p.src) {
		return "", p.errorf("unterminated string")
	}
	s, err := strconv.Unquote(p.src[start : i+1])
	if err != nil {
		return "", p.errorf("invalid string literal")
	}
	p.pos = i + 1
	return s, nil
}

func (p *parser) parseArrayCtor() (Expr, error) {
	p.pos++ // [
	items, err := p.parseList("]")
	if err != nil {
		return nil, err
	}
	return ArrayCtor{Items: items}, nil
}

// parseList parses comma-separated expressions up to and including close.
func (p *parser) parseList(close string) ([]Expr, error) {
	var items []Expr
	p.skipSpace()
	if p.consume(close) {
		return items, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		p.skipSpace()
		if p.consume(close) {
			return items, nil
		}
		if !p.consume(",") {
			return nil, p.errorf("expected ',' or %q", close)
		}
	}
}

func (p *parser) parseObjectCtor() (Expr, error) {
	p.pos++ // {
	var fields []ObjectField
	p.skipSpace()
	if p.consume("}") {
		return ObjectCtor{}, nil
	}
	for {
		p.skipSpace()
		var name string
		switch {
		case p.peek() == '"':
			s, err := p.parseString()
			if err != nil {
				return nil, err
			}
			name = s
		case isIdentStart(p.peek()):
			name = p.ident()
		default:
			return nil, p.errorf("expected field name")
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ObjectField{Name: name, Value: value})
		p.skipSpace()
		if p.consume("}") {
			return ObjectCtor{Fields: fields}, nil
		}
		if !p.consume(",") {
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}

// bindingName parses the bare identifier naming a scoped binding.
func (p *parser) bindingName() (string, error) {
	p.skipSpace()
	p.consume("$")
	name := p.ident()
	if name == "" || reserved[name] {
		return "", p.errorf("expected binding name")
	}
	return name, nil
}

func (p *parser) parseCall(name string, start int) (Expr, error) {
	p.pos++ // (
	switch name {
	case "filter", "map":
		arr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		binding, err := p.bindingName()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if name == "filter" {
			return ArrayFilter{Array: arr, Binding: binding, Predicate: body}, nil
		}
		return ArrayMap{Array: arr, Binding: binding, Body: body}, nil
	case "let":
		binding, err := p.bindingName()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		args, err := p.parseList(")")
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, p.errorf("let takes a name, a value and a body")
		}
		return Let{Name: binding, Value: args[0], Body: args[1]}, nil
	}

	args, err := p.parseList(")")
	if err != nil {
		return nil, err
	}
	arity := func(lo, hi int) error {
		if len(args) < lo || (hi >= 0 && len(args) > hi) {
			pos := p.pos
			p.pos = start
			defer func() { p.pos = pos }()
			return p.errorf("wrong number of arguments to %s: %d", name, len(args))
		}
		return nil
	}

	switch name {
	case "coalesce":
		if err := arity(1, -1); err != nil {
			return nil, err
		}
		return Coalesce{Args: args}, nil
	case "when":
		if err := arity(2, 3); err != nil {
			return nil, err
		}
		w := When{Cond: args[0], Then: args[1]}
		if len(args) == 3 {
			w.Else = args[2]
		}
		return w, nil
	case "case":
		if err := arity(2, -1); err != nil {
			return nil, err
		}
		var c Case
		for i := 0; i+1 < len(args); i += 2 {
			c.Branches = append(c.Branches, Branch{Cond: args[i], Value: args[i+1]})
		}
		if len(args)%2 == 1 {
			c.Else = args[len(args)-1]
		}
		return c, nil
	case "cast":
		if err := arity(2, 2); err != nil {
			return nil, err
		}
		kind, ok := castTarget(args[1])
		if !ok {
			return nil, p.errorf("cast target must be a type name string")
		}
		return Cast{Operand: args[0], To: kind}, nil
	case "date", "datetime", "duration", "binary":
		if err := arity(1, 1); err != nil {
			return nil, err
		}
		v, err := p.typedLiteral(name, args[0])
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	}

	fn, ok := LookupFunc(name)
	if !ok {
		p.pos = start
		return nil, p.errorf("unknown function %q", name)
	}
	info := fn.Info()
	if err := arity(info.MinArgs, info.MaxArgs); err != nil {
		return nil, err
	}
	return Call{Fn: fn, Args: args}, nil
}

func castTarget(e Expr) (ir.Kind, bool) {
	lit, ok := e.(Literal)
	if !ok {
		return 0, false
	}
	name, ok := lit.Value.(ir.String)
	if !ok {
		return 0, false
	}
	return KindByName(string(name))
}

// KindByName resolves a scalar type name usable as a cast target.
func KindByName(name string) (ir.Kind, bool) {
	for k := ir.KindBool; k <= ir.KindBinary; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

func (p *parser) typedLiteral(name string, arg Expr) (ir.Value, error) {
	lit, ok := arg.(Literal)
	s, isString := lit.Value.(ir.String)
	if !ok || !isString {
		return nil, p.errorf("%s() takes a string literal", name)
	}
	switch name {
	case "date":
		d, err := ir.ParseDate(string(s))
		if err != nil {
			return nil, p.errorf("invalid date %q", string(s))
		}
		return d, nil
	case "datetime":
		d, err := ir.ParseDateTime(string(s))
		if err != nil {
			return nil, p.errorf("invalid datetime %q", string(s))
		}
		return d, nil
	case "duration":
		d, err := time.ParseDuration(string(s))
		if err != nil {
			return nil, p.errorf("invalid duration %q", string(s))
		}
		return ir.Duration(d), nil
	default:
		b, err := base64.StdEncoding.DecodeString(string(s))
		if err != nil {
			return nil, p.errorf("invalid base64 %q", string(s))
		}
		return ir.Binary(b), nil
	}
}

// parsePath parses a path starting at the current position.
func (p *parser) parsePath() (Path, error) {
	var path Path
	switch c := p.peek(); {
	case c == '$':
		p.pos++
		if isIdentStart(p.peek()) {
			path.Var = p.ident()
		} else {
			path.Absolute = true
		}
	case c == '@':
		p.pos++
		path.Segments = append(path.Segments, Current())
	case isIdentStart(c):
		start := p.pos
		name := p.ident()
		if reserved[name] {
			p.pos = start
			return Path{}, p.errorf("reserved word %q cannot start a path; write [%q]", name, name)
		}
		path.Segments = append(path.Segments, Field(name))
	case c == '[':
	case c == 0:
		return Path{}, p.errorf("empty path")
	default:
		return Path{}, p.errorf("unexpected character %q in path", c)
	}
	return p.parseSegments(path)
}

func (p *parser) parseSegments(path Path) (Path, error) {
	for !p.eof() {
		switch p.peek() {
		case '.':
			p.pos++
			name := p.ident()
			if name == "" {
				return Path{}, p.errorf("expected field name after '.'")
			}
			path.Segments = append(path.Segments, Field(name))
		case '[':
			seg, err := p.parseBracket()
			if err != nil {
				return Path{}, err
			}
			path.Segments = append(path.Segments, seg)
		default:
			return path, nil
		}
	}
	return path, nil
}

func (p *parser) parseBracket() (Segment, error) {
	p.pos++ // [
	switch c := p.peek(); {
	case c == '*':
		p.pos++
		if !p.consume("]") {
			return Segment{}, p.errorf("expected ']' after '*'")
		}
		return Wildcard(), nil
	case c == '?':
		p.pos++
		start := p.pos
		pred, err := p.parseExpr()
		if err != nil {
			return Segment{}, err
		}
		p.skipSpace()
		source := p.src[start:p.pos]
		if !p.consume("]") {
			return Segment{}, p.errorf("expected ']' after filter predicate")
		}
		return Segment{Kind: SegFilter, Filter: pred, Source: source}, nil
	case c == '"':
		start := p.pos
		name, err := p.parseString()
		if err != nil {
			return Segment{}, err
		}
		if strconv.Quote(name) != p.src[start:p.pos] {
			p.pos = start
			return Segment{}, p.errorf("field name must be written as %s", strconv.Quote(name))
		}
		if !p.consume("]") {
			return Segment{}, p.errorf("expected ']' after field name")
		}
		return Segment{Kind: SegField, Name: name, Quoted: true}, nil
	case c == '-' || isDigit(c):
		start := p.pos
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
		raw := p.src[start:p.pos]
		n, err := strconv.Atoi(raw)
		if err != nil || strconv.Itoa(n) != raw {
			p.pos = start
			return Segment{}, p.errorf("invalid index %q", raw)
		}
		if !p.consume("]") {
			return Segment{}, p.errorf("expected ']' after index")
		}
		return Index(n), nil
	case c == 0:
		return Segment{}, p.errorf("unterminated '['")
	default:
		return Segment{}, p.errorf("expected index, '*', '?' or quoted name")
	}
}
