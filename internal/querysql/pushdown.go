package querysql

import "github.com/roach88/refjoin/internal/queryir"

// Pushdown returns the top-level conjuncts of c that constrain only
// selector and that Compile can express in SQL.
//
// Pushed conjuncts only narrow the candidate set; the engine still evaluates
// the whole constraint on every joined tuple. Compile expresses each one
// exactly, so conjuncts under NOT are safe to push. The caller must not push
// constraints onto the optional side of a LEFT OUTER JOIN.
func Pushdown(c queryir.Constraint, selector string) []queryir.Constraint {
	var out []queryir.Constraint
	for _, conj := range conjuncts(c) {
		if pushable(conj, selector) {
			out = append(out, conj)
		}
	}
	return out
}

func conjuncts(c queryir.Constraint) []queryir.Constraint {
	if c == nil {
		return nil
	}
	if and, ok := c.(queryir.And); ok {
		return append(conjuncts(and.Left), conjuncts(and.Right)...)
	}
	return []queryir.Constraint{c}
}

func pushable(c queryir.Constraint, selector string) bool {
	switch c := c.(type) {
	case queryir.And:
		return pushable(c.Left, selector) && pushable(c.Right, selector)
	case queryir.Or:
		return pushable(c.Left, selector) && pushable(c.Right, selector)
	case queryir.Not:
		return pushable(c.Constraint, selector)
	case queryir.Comparison:
		if c.Operator != queryir.OpEqual || !IsTextLiteral(c.Literal) {
			return false
		}
		switch op := c.Operand.(type) {
		case queryir.NodeName:
			return op.Selector == selector
		case queryir.PropertyValue:
			return op.Selector == selector
		}
		return false
	case queryir.PropertyExistence:
		return c.Selector == selector
	case queryir.ChildNode:
		return c.Selector == selector
	case queryir.DescendantNode:
		return c.Selector == selector
	case queryir.SameNode:
		return c.Selector == selector
	}
	return false
}
