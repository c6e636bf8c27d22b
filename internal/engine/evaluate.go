package engine

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

var (
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
)

// satisfies evaluates a constraint against one tuple.
//
// Comparisons on multi-valued properties hold when any value satisfies
// them. A selector bound to nil (unmatched outer join) has no values, so
// every comparison and existence test on it is false.
func (e *Engine) satisfies(c queryir.Constraint, t tuple) bool {
	switch c := c.(type) {
	case queryir.And:
		return e.satisfies(c.Left, t) && e.satisfies(c.Right, t)
	case queryir.Or:
		return e.satisfies(c.Left, t) || e.satisfies(c.Right, t)
	case queryir.Not:
		return !e.satisfies(c.Constraint, t)

	case queryir.Comparison:
		for _, v := range e.operandValues(c.Operand, t) {
			if compare(v, c.Operator, c.Literal) {
				return true
			}
		}
		return false

	case queryir.PropertyExistence:
		n := t[c.Selector]
		if n == nil {
			return false
		}
		_, ok := e.propertyValues(n, c.Property)
		return ok

	case queryir.ChildNode:
		n := t[c.Selector]
		return n != nil && n.Path != ir.RootPath && path.Dir(n.Path) == c.Path
	case queryir.DescendantNode:
		n := t[c.Selector]
		return n != nil && isDescendantPath(n.Path, c.Path)
	case queryir.SameNode:
		n := t[c.Selector]
		return n != nil && n.Path == c.Path
	}
	return false
}

func compare(v ir.Value, op queryir.Operator, literal ir.Value) bool {
	if op == queryir.OpLike {
		return like(v.String(), literal.String())
	}
	cmp := ir.Compare(v, literal)
	switch op {
	case queryir.OpEqual:
		return cmp == 0
	case queryir.OpNotEqual:
		return cmp != 0
	case queryir.OpLessThan:
		return cmp < 0
	case queryir.OpLessThanOrEqual:
		return cmp <= 0
	case queryir.OpGreaterThan:
		return cmp > 0
	case queryir.OpGreaterThanOrEqual:
		return cmp >= 0
	}
	return false
}

// operandValues evaluates a dynamic operand to its values on a tuple.
func (e *Engine) operandValues(op queryir.DynamicOperand, t tuple) []ir.Value {
	switch op := op.(type) {
	case queryir.PropertyValue:
		vals, _ := e.propertyValues(t[op.Selector], op.Property)
		return vals
	case queryir.NodeName:
		if n := t[op.Selector]; n != nil {
			return []ir.Value{ir.String(n.Name)}
		}
	case queryir.NodeLocalName:
		if n := t[op.Selector]; n != nil {
			return []ir.Value{ir.String(localName(n.Name))}
		}
	case queryir.LowerCase:
		return mapStrings(e.operandValues(op.Operand, t), lowerCaser.String)
	case queryir.UpperCase:
		return mapStrings(e.operandValues(op.Operand, t), upperCaser.String)
	}
	return nil
}

// propertyValues returns the values of prop on n and whether the property
// is present. jcr:primaryType is always present; jcr:uuid is present on
// referenceable nodes and is the node identifier.
func (e *Engine) propertyValues(n *ir.NodeRecord, prop string) ([]ir.Value, bool) {
	if n == nil {
		return nil, false
	}
	switch prop {
	case ir.PropPrimaryType:
		return []ir.Value{ir.String(n.PrimaryType)}, true
	case ir.PropUUID:
		if e.types.IsReferenceable(n.PrimaryType) {
			return []ir.Value{ir.String(n.ID)}, true
		}
		return nil, false
	}
	p, ok := n.Properties[prop]
	if !ok {
		return nil, false
	}
	return p.Values, true
}

func mapStrings(vals []ir.Value, fn func(string) string) []ir.Value {
	out := make([]ir.Value, len(vals))
	for i, v := range vals {
		out[i] = ir.String(fn(v.String()))
	}
	return out
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// like matches s against a LIKE pattern: '%' is any run of characters, '_'
// is one character and '\' escapes the next pattern character.
func like(s, pattern string) bool {
	return likeRunes([]rune(s), []rune(pattern))
}

func likeRunes(s, p []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '%':
			for len(p) > 0 && p[0] == '%' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if likeRunes(s[i:], p) {
					return true
				}
			}
			return false
		case '_':
			if len(s) == 0 {
				return false
			}
			s, p = s[1:], p[1:]
		default:
			if p[0] == '\\' && len(p) > 1 {
				p = p[1:]
			}
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			s, p = s[1:], p[1:]
		}
	}
	return len(s) == 0
}
