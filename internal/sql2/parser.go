package sql2

import (
	"strconv"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

// Language is the query language name accepted by Parse.
const Language = "JCR-SQL2"

// reserved words never taken as an implicit selector alias.
var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AS": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "ORDER": true, "BY": true,
}

// Parse parses a JCR-SQL2 statement. The result is syntactically complete
// but unvalidated; run queryir.Validate before executing it.
func Parse(statement string) (*queryir.Query, error) {
	toks, err := lex(statement)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q, err := p.query()
	if err != nil {
		return nil, err
	}
	q.Statement = statement
	return q, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// isKeyword reports whether the current token is the keyword kw.
func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// acceptCall consumes kw only when it is followed by '(', so a property
// or selector that happens to be called "name" still parses as a name.
func (p *parser) acceptCall(kw string) bool {
	if p.isKeyword(kw) && p.i+1 < len(p.toks) {
		if n := p.toks[p.i+1]; n.kind == tokPunct && n.text == "(" {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.unexpected("expected " + kw)
	}
	return nil
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	if !p.acceptPunct(s) {
		return p.unexpected("expected '" + s + "'")
	}
	return nil
}

func (p *parser) unexpected(want string) error {
	t := p.peek()
	return queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "%s, found %s", want, t.describe())
}

// name reads a bare or bracketed name.
func (p *parser) name(what string) (string, int, error) {
	t := p.peek()
	if t.kind == tokBracket || (t.kind == tokIdent && !reserved[strings.ToUpper(t.text)]) {
		p.i++
		return t.text, t.pos, nil
	}
	return "", t.pos, p.unexpected("expected " + what)
}

func (p *parser) query() (*queryir.Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	q := &queryir.Query{}

	cols, err := p.columns()
	if err != nil {
		return nil, err
	}
	q.Columns = cols

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if q.Source, err = p.source(); err != nil {
		return nil, err
	}

	if p.acceptKeyword("WHERE") {
		if q.Constraint, err = p.or(); err != nil {
			return nil, err
		}
	}

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if q.Orderings, err = p.orderings(); err != nil {
			return nil, err
		}
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "unexpected %s after end of query", t.describe())
	}
	return q, nil
}

func (p *parser) columns() ([]queryir.Column, error) {
	if t := p.peek(); p.acceptPunct("*") {
		return []queryir.Column{{Pos: t.pos}}, nil
	}

	var cols []queryir.Column
	for {
		col, err := p.column()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if !p.acceptPunct(",") {
			return cols, nil
		}
	}
}

// column parses sel.*, sel.[prop] or [prop], each optionally aliased.
func (p *parser) column() (queryir.Column, error) {
	first, pos, err := p.name("column")
	if err != nil {
		return queryir.Column{}, err
	}
	col := queryir.Column{Property: first, Pos: pos}

	if p.acceptPunct(".") {
		col.Selector = first
		if p.acceptPunct("*") {
			col.Property = ""
			return col, nil
		}
		if col.Property, _, err = p.name("property name"); err != nil {
			return queryir.Column{}, err
		}
	}

	if p.acceptKeyword("AS") {
		if col.Name, _, err = p.name("column alias"); err != nil {
			return queryir.Column{}, err
		}
	}
	return col, nil
}

func (p *parser) source() (queryir.Source, error) {
	left, err := p.selector()
	if err != nil {
		return nil, err
	}

	var src queryir.Source = left
	for {
		jt, ok, err := p.joinType()
		if err != nil {
			return nil, err
		}
		if !ok {
			return src, nil
		}
		right, err := p.selector()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		cond, err := p.joinCondition()
		if err != nil {
			return nil, err
		}
		src = queryir.Join{Left: src, Right: right, Type: jt, Condition: cond}
	}
}

func (p *parser) joinType() (queryir.JoinType, bool, error) {
	t := p.peek()
	switch {
	case p.acceptKeyword("JOIN"):
		return queryir.InnerJoin, true, nil
	case p.acceptKeyword("INNER"):
		return queryir.InnerJoin, true, p.expectKeyword("JOIN")
	case p.acceptKeyword("LEFT"):
		p.acceptKeyword("OUTER")
		return queryir.LeftOuterJoin, true, p.expectKeyword("JOIN")
	case p.isKeyword("RIGHT"):
		return 0, false, queryir.Errorf(queryir.ErrCodeUnsupported, t.pos, "RIGHT OUTER JOIN is not supported")
	}
	return 0, false, nil
}

// selector parses nodeType [AS] [name].
func (p *parser) selector() (queryir.Selector, error) {
	nodeType, pos, err := p.name("node type")
	if err != nil {
		return queryir.Selector{}, err
	}
	sel := queryir.Selector{NodeType: nodeType, Name: nodeType, Pos: pos}

	if p.acceptKeyword("AS") {
		if sel.Name, _, err = p.name("selector name"); err != nil {
			return queryir.Selector{}, err
		}
		return sel, nil
	}
	if t := p.peek(); t.kind == tokBracket || (t.kind == tokIdent && !reserved[strings.ToUpper(t.text)]) {
		sel.Name = t.text
		p.i++
	}
	return sel, nil
}

func (p *parser) joinCondition() (queryir.JoinCondition, error) {
	t := p.peek()
	switch {
	case p.acceptCall("ISCHILDNODE"):
		a, b, err := p.selectorPair()
		return queryir.ChildNodeJoin{Child: a, Parent: b, Pos: t.pos}, err
	case p.acceptCall("ISDESCENDANTNODE"):
		a, b, err := p.selectorPair()
		return queryir.DescendantNodeJoin{Descendant: a, Ancestor: b, Pos: t.pos}, err
	case p.acceptCall("ISSAMENODE"):
		a, b, err := p.selectorPair()
		return queryir.SameNodeJoin{Selector1: a, Selector2: b, Pos: t.pos}, err
	}

	sel1, prop1, err := p.qualifiedProperty()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	sel2, prop2, err := p.qualifiedProperty()
	if err != nil {
		return nil, err
	}
	return queryir.EquiJoin{
		Selector1: sel1, Property1: prop1,
		Selector2: sel2, Property2: prop2,
		Pos: t.pos,
	}, nil
}

func (p *parser) selectorPair() (string, string, error) {
	if err := p.expectPunct("("); err != nil {
		return "", "", err
	}
	a, _, err := p.name("selector name")
	if err != nil {
		return "", "", err
	}
	if err := p.expectPunct(","); err != nil {
		return "", "", err
	}
	b, _, err := p.name("selector name")
	if err != nil {
		return "", "", err
	}
	return a, b, p.expectPunct(")")
}

// qualifiedProperty parses sel.[prop] as used by equi-joins.
func (p *parser) qualifiedProperty() (string, string, error) {
	sel, _, err := p.name("selector name")
	if err != nil {
		return "", "", err
	}
	if err := p.expectPunct("."); err != nil {
		return "", "", err
	}
	prop, _, err := p.name("property name")
	return sel, prop, err
}

func (p *parser) or() (queryir.Constraint, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = queryir.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (queryir.Constraint, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = queryir.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) not() (queryir.Constraint, error) {
	if p.acceptKeyword("NOT") {
		c, err := p.not()
		if err != nil {
			return nil, err
		}
		return queryir.Not{Constraint: c}, nil
	}
	return p.primary()
}

func (p *parser) primary() (queryir.Constraint, error) {
	t := p.peek()

	if p.acceptPunct("(") {
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		return c, p.expectPunct(")")
	}

	switch {
	case p.acceptCall("ISCHILDNODE"):
		sel, path, err := p.pathConstraint()
		return queryir.ChildNode{Selector: sel, Path: path, Pos: t.pos}, err
	case p.acceptCall("ISDESCENDANTNODE"):
		sel, path, err := p.pathConstraint()
		return queryir.DescendantNode{Selector: sel, Path: path, Pos: t.pos}, err
	case p.acceptCall("ISSAMENODE"):
		sel, path, err := p.pathConstraint()
		return queryir.SameNode{Selector: sel, Path: path, Pos: t.pos}, err
	}

	operand, err := p.operand()
	if err != nil {
		return nil, err
	}

	if p.acceptKeyword("IS") {
		pv, ok := operand.(queryir.PropertyValue)
		if !ok {
			return nil, queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "IS NULL requires a property operand")
		}
		negated := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		exists := queryir.PropertyExistence{Selector: pv.Selector, Property: pv.Property, Pos: pv.Pos}
		if negated {
			return exists, nil
		}
		return queryir.Not{Constraint: exists}, nil
	}

	op, err := p.operator()
	if err != nil {
		return nil, err
	}
	lit, err := p.literal()
	if err != nil {
		return nil, err
	}
	return queryir.Comparison{Operand: operand, Operator: op, Literal: lit}, nil
}

// pathConstraint parses "(path)" or "(selector, path)".
func (p *parser) pathConstraint() (string, string, error) {
	if err := p.expectPunct("("); err != nil {
		return "", "", err
	}

	sel := ""
	if t := p.peek(); t.kind != tokString && !(t.kind == tokBracket && strings.HasPrefix(t.text, "/")) {
		name, _, err := p.name("selector name")
		if err != nil {
			return "", "", err
		}
		sel = name
		if err := p.expectPunct(","); err != nil {
			return "", "", err
		}
	}

	t := p.next()
	if t.kind != tokString && t.kind != tokBracket {
		return "", "", queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "expected path, found %s", t.describe())
	}
	if !strings.HasPrefix(t.text, "/") {
		return "", "", queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "path %q must be absolute", t.text)
	}
	return sel, t.text, p.expectPunct(")")
}

func (p *parser) operand() (queryir.DynamicOperand, error) {
	t := p.peek()
	switch {
	case p.acceptCall("NAME"):
		sel, err := p.optionalSelectorArg()
		return queryir.NodeName{Selector: sel, Pos: t.pos}, err
	case p.acceptCall("LOCALNAME"):
		sel, err := p.optionalSelectorArg()
		return queryir.NodeLocalName{Selector: sel, Pos: t.pos}, err
	case p.acceptCall("LOWER"):
		inner, err := p.nestedOperand()
		return queryir.LowerCase{Operand: inner}, err
	case p.acceptCall("UPPER"):
		inner, err := p.nestedOperand()
		return queryir.UpperCase{Operand: inner}, err
	}

	first, pos, err := p.name("property")
	if err != nil {
		return nil, err
	}
	if !p.acceptPunct(".") {
		return queryir.PropertyValue{Property: first, Pos: pos}, nil
	}
	prop, _, err := p.name("property name")
	if err != nil {
		return nil, err
	}
	return queryir.PropertyValue{Selector: first, Property: prop, Pos: pos}, nil
}

func (p *parser) optionalSelectorArg() (string, error) {
	if err := p.expectPunct("("); err != nil {
		return "", err
	}
	if p.acceptPunct(")") {
		return "", nil
	}
	sel, _, err := p.name("selector name")
	if err != nil {
		return "", err
	}
	return sel, p.expectPunct(")")
}

func (p *parser) nestedOperand() (queryir.DynamicOperand, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	op, err := p.operand()
	if err != nil {
		return nil, err
	}
	return op, p.expectPunct(")")
}

var operators = map[string]queryir.Operator{
	"=":  queryir.OpEqual,
	"<>": queryir.OpNotEqual,
	"!=": queryir.OpNotEqual,
	"<":  queryir.OpLessThan,
	"<=": queryir.OpLessThanOrEqual,
	">":  queryir.OpGreaterThan,
	">=": queryir.OpGreaterThanOrEqual,
}

func (p *parser) operator() (queryir.Operator, error) {
	t := p.peek()
	if t.kind == tokPunct {
		if op, ok := operators[t.text]; ok {
			p.i++
			return op, nil
		}
	}
	if p.acceptKeyword("LIKE") {
		return queryir.OpLike, nil
	}
	return 0, p.unexpected("expected comparison operator")
}

func (p *parser) literal() (ir.Value, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.i++
		return ir.String(t.text), nil
	case tokInteger:
		p.i++
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, queryir.Errorf(queryir.ErrCodeSyntax, t.pos, "integer %s out of range", t.text)
		}
		return ir.Long(n), nil
	}

	if !p.acceptCall("CAST") {
		return nil, p.unexpected("expected literal")
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	s := p.peek()
	if s.kind != tokString {
		return nil, p.unexpected("expected string literal in CAST")
	}
	p.i++
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	typeTok := p.peek()
	if typeTok.kind != tokIdent {
		return nil, p.unexpected("expected type name")
	}
	p.i++
	typ, err := ir.ParseValueType(typeTok.text)
	if err != nil || typ == ir.TypeUndefined {
		return nil, queryir.Errorf(queryir.ErrCodeSyntax, typeTok.pos, "unsupported CAST type %q", typeTok.text)
	}
	v, err := ir.ParseValue(typ, s.text)
	if err != nil {
		return nil, queryir.Errorf(queryir.ErrCodeSyntax, s.pos, "cannot cast %q to %s: %v", s.text, typ, err)
	}
	return v, p.expectPunct(")")
}

func (p *parser) orderings() ([]queryir.Ordering, error) {
	var out []queryir.Ordering
	for {
		op, err := p.operand()
		if err != nil {
			return nil, err
		}
		o := queryir.Ordering{Operand: op}
		if p.acceptKeyword("DESC") {
			o.Descending = true
		} else {
			p.acceptKeyword("ASC")
		}
		out = append(out, o)
		if !p.acceptPunct(",") {
			return out, nil
		}
	}
}
