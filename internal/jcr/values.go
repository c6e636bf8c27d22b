package jcr

import "github.com/roach88/refjoin/internal/ir"

// ValueFactory creates property values.
type ValueFactory struct {
	session *Session
}

// String creates a string value.
func (f *ValueFactory) String(s string) ir.Value { return ir.String(s) }

// Long creates a long value.
func (f *ValueFactory) Long(v int64) ir.Value { return ir.Long(v) }

// Boolean creates a boolean value.
func (f *ValueFactory) Boolean(v bool) ir.Value { return ir.Boolean(v) }

// Reference creates a reference to a node. The node must be referenceable.
func (f *ValueFactory) Reference(n *Node) (ir.Value, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	if !n.isReferenceable() {
		return nil, newError(ErrCodeValueFormat, n.Path(), "node of type %q is not referenceable", n.PrimaryType())
	}
	return ir.Reference(n.Identifier()), nil
}

// Parse converts text into a value of the given type.
func (f *ValueFactory) Parse(t ir.ValueType, s string) (ir.Value, error) {
	v, err := ir.ParseValue(t, s)
	if err != nil {
		return nil, wrapError(ErrCodeValueFormat, "", err, "parse %s value", t)
	}
	return v, nil
}
