package queryir

import "github.com/roach88/refjoin/internal/ir"

// TypeRegistry is the view of the node type registry Validate needs.
// *schema.Registry satisfies it.
type TypeRegistry interface {
	NodeType(name string) (*ir.NodeType, bool)
	PropertyDefinition(typeName, prop string) (ir.PropertyDefinition, bool)
}

// Validate checks a parsed query against the registry.
//
// Rules:
//  1. Selector names are unique; every selector's node type is registered
//  2. Every selector name used by a join condition, constraint, column or
//     ordering names a selector of the source
//  3. Every property reference resolves to a definition (named or residual)
//     on the selector's node type
//  4. A reference without a selector is only allowed when the source has
//     exactly one selector; Validate fills in that selector's name
//
// Validate also assigns default column names. It returns the first problem
// found as a *QueryError.
func Validate(q *Query, reg TypeRegistry) error {
	v := &validator{reg: reg, types: make(map[string]string)}

	sels := Selectors(q.Source)
	if len(sels) == 0 {
		return Errorf(ErrCodeSyntax, -1, "query has no source")
	}
	for _, s := range sels {
		if _, dup := v.types[s.Name]; dup {
			return Errorf(ErrCodeDuplicateSelector, s.Pos, "selector %q is declared twice", s.Name)
		}
		if _, ok := reg.NodeType(s.NodeType); !ok {
			return Errorf(ErrCodeUnknownNodeType, s.Pos, "node type %q is not registered", s.NodeType)
		}
		v.types[s.Name] = s.NodeType
		v.order = append(v.order, s.Name)
	}

	if err := v.source(q.Source); err != nil {
		return err
	}
	if q.Constraint != nil {
		c, err := v.constraint(q.Constraint)
		if err != nil {
			return err
		}
		q.Constraint = c
	}
	for i := range q.Columns {
		if err := v.column(&q.Columns[i]); err != nil {
			return err
		}
	}
	for i := range q.Orderings {
		op, err := v.operand(q.Orderings[i].Operand)
		if err != nil {
			return err
		}
		q.Orderings[i].Operand = op
	}
	return nil
}

type validator struct {
	reg   TypeRegistry
	types map[string]string // selector name -> node type
	order []string
}

// selector resolves a possibly empty selector name.
func (v *validator) selector(name string, pos int) (string, error) {
	if name == "" {
		if len(v.order) != 1 {
			return "", Errorf(ErrCodeAmbiguousSelector, pos,
				"selector name required when the query has %d selectors", len(v.order))
		}
		return v.order[0], nil
	}
	if _, ok := v.types[name]; !ok {
		return "", Errorf(ErrCodeUnknownSelector, pos, "selector %q is not defined in the FROM clause", name)
	}
	return name, nil
}

func (v *validator) property(sel, prop string, pos int) error {
	nodeType := v.types[sel]
	if _, ok := v.reg.PropertyDefinition(nodeType, prop); !ok {
		return Errorf(ErrCodeUnknownProperty, pos,
			"property %q is not defined on node type %q (selector %q)", prop, nodeType, sel)
	}
	return nil
}

func (v *validator) source(src Source) error {
	j, ok := src.(Join)
	if !ok {
		return nil
	}
	if err := v.source(j.Left); err != nil {
		return err
	}
	if err := v.source(j.Right); err != nil {
		return err
	}

	switch c := j.Condition.(type) {
	case ChildNodeJoin:
		return v.selectors(c.Pos, c.Child, c.Parent)
	case DescendantNodeJoin:
		return v.selectors(c.Pos, c.Descendant, c.Ancestor)
	case SameNodeJoin:
		return v.selectors(c.Pos, c.Selector1, c.Selector2)
	case EquiJoin:
		if err := v.selectors(c.Pos, c.Selector1, c.Selector2); err != nil {
			return err
		}
		if err := v.property(c.Selector1, c.Property1, c.Pos); err != nil {
			return err
		}
		return v.property(c.Selector2, c.Property2, c.Pos)
	case nil:
		return Errorf(ErrCodeSyntax, -1, "join has no condition")
	default:
		return Errorf(ErrCodeUnsupported, -1, "unsupported join condition %T", c)
	}
}

func (v *validator) selectors(pos int, names ...string) error {
	for _, n := range names {
		if _, ok := v.types[n]; !ok {
			return Errorf(ErrCodeUnknownSelector, pos, "selector %q is not defined in the FROM clause", n)
		}
	}
	return nil
}

// constraint validates c and returns it with selector names filled in.
func (v *validator) constraint(c Constraint) (Constraint, error) {
	var err error
	switch c := c.(type) {
	case And:
		if c.Left, err = v.constraint(c.Left); err != nil {
			return nil, err
		}
		c.Right, err = v.constraint(c.Right)
		return c, err
	case Or:
		if c.Left, err = v.constraint(c.Left); err != nil {
			return nil, err
		}
		c.Right, err = v.constraint(c.Right)
		return c, err
	case Not:
		c.Constraint, err = v.constraint(c.Constraint)
		return c, err
	case Comparison:
		c.Operand, err = v.operand(c.Operand)
		return c, err
	case PropertyExistence:
		if c.Selector, err = v.selector(c.Selector, c.Pos); err != nil {
			return nil, err
		}
		return c, v.property(c.Selector, c.Property, c.Pos)
	case ChildNode:
		c.Selector, err = v.selector(c.Selector, c.Pos)
		return c, err
	case DescendantNode:
		c.Selector, err = v.selector(c.Selector, c.Pos)
		return c, err
	case SameNode:
		c.Selector, err = v.selector(c.Selector, c.Pos)
		return c, err
	}
	return nil, Errorf(ErrCodeUnsupported, -1, "unsupported constraint %T", c)
}

// operand validates op and returns it with selector names filled in.
func (v *validator) operand(op DynamicOperand) (DynamicOperand, error) {
	var err error
	switch op := op.(type) {
	case PropertyValue:
		if op.Selector, err = v.selector(op.Selector, op.Pos); err != nil {
			return nil, err
		}
		return op, v.property(op.Selector, op.Property, op.Pos)
	case NodeName:
		op.Selector, err = v.selector(op.Selector, op.Pos)
		return op, err
	case NodeLocalName:
		op.Selector, err = v.selector(op.Selector, op.Pos)
		return op, err
	case LowerCase:
		op.Operand, err = v.operand(op.Operand)
		return op, err
	case UpperCase:
		op.Operand, err = v.operand(op.Operand)
		return op, err
	}
	return nil, Errorf(ErrCodeUnsupported, -1, "unsupported operand %T", op)
}

func (v *validator) column(c *Column) error {
	if c.Selector == "" && c.Property == "" {
		return nil // SELECT *
	}
	sel, err := v.selector(c.Selector, c.Pos)
	if err != nil {
		return err
	}
	c.Selector = sel
	if c.IsWildcard() {
		return nil
	}
	if err := v.property(sel, c.Property, c.Pos); err != nil {
		return err
	}
	if c.Name == "" {
		c.Name = ColumnName(sel, c.Property, len(v.order) > 1)
	}
	return nil
}

// ColumnName is the default result name of selector.[property]: qualified
// by the selector when the query joins several selectors.
func ColumnName(selector, property string, qualified bool) string {
	if qualified {
		return selector + "." + property
	}
	return property
}
