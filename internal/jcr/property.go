package jcr

import (
	"context"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
)

// Property is a snapshot of one property of a node.
type Property struct {
	node *Node
	rec  ir.PropertyRecord
}

// Name returns the property name.
func (p *Property) Name() string { return p.rec.Name }

// Path returns the property path.
func (p *Property) Path() string { return joinPath(p.node.Path(), p.rec.Name) }

// Type returns the value type.
func (p *Property) Type() ir.ValueType { return p.rec.Type }

// IsMultiple reports whether the property is multi-valued. A multi-valued
// property holding one value is still multi-valued.
func (p *Property) IsMultiple() bool { return p.rec.Multiple }

// Parent returns the node owning the property.
func (p *Property) Parent() *Node { return p.node }

// Value returns the single value. Fails with VALUE_FORMAT on a multi-valued
// property.
func (p *Property) Value() (ir.Value, error) {
	if p.rec.Multiple {
		return nil, newError(ErrCodeValueFormat, p.Path(), "property is multi-valued")
	}
	if len(p.rec.Values) == 0 {
		return nil, newError(ErrCodeValueFormat, p.Path(), "property has no value")
	}
	return p.rec.Values[0], nil
}

// Values returns the values in assignment order.
func (p *Property) Values() []ir.Value {
	return append([]ir.Value(nil), p.rec.Values...)
}

// Nodes resolves the targets of a reference property in value order.
func (p *Property) Nodes(ctx context.Context) ([]*Node, error) {
	if p.rec.Type != ir.TypeReference {
		return nil, newError(ErrCodeValueFormat, p.Path(), "property is not a reference")
	}
	out := make([]*Node, 0, len(p.rec.Values))
	for _, v := range p.rec.Values {
		n, err := p.node.session.NodeByIdentifier(ctx, v.String())
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// String renders a single value as itself and multiple values as
// "[v1, v2]".
func (p *Property) String() string {
	if !p.rec.Multiple && len(p.rec.Values) == 1 {
		return p.rec.Values[0].String()
	}
	return "[" + strings.Join(ir.Strings(p.rec.Values), ", ") + "]"
}
