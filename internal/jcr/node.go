package jcr

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/schema"
	"github.com/roach88/refjoin/internal/store"
)

// Node is a session's handle on one node.
//
// Reads see the session's pending changes. A handle becomes invalid when
// its node is removed or the session is refreshed; operations on it then
// fail with INVALID_ITEM_STATE.
type Node struct {
	session *Session
	rec     *ir.NodeRecord
}

// Identifier returns the node's stable identifier. For referenceable nodes
// it is also the value of jcr:uuid.
func (n *Node) Identifier() string { return n.rec.ID }

// Name returns the node name. The root's name is empty.
func (n *Node) Name() string { return n.rec.Name }

// Path returns the absolute path.
func (n *Node) Path() string { return n.rec.Path }

// PrimaryType returns the name of the node's primary type.
func (n *Node) PrimaryType() string { return n.rec.PrimaryType }

// IsNodeType reports whether the node's primary type is name or a subtype.
func (n *Node) IsNodeType(name string) bool {
	return n.session.repo.registry.IsSubtype(n.rec.PrimaryType, name)
}

func (n *Node) check() error {
	if err := n.session.check(); err != nil {
		return err
	}
	if n.session.items[n.rec.ID] != n.rec {
		return newError(ErrCodeInvalidItemState, n.rec.Path, "node handle is no longer valid")
	}
	return nil
}

// Parent returns the parent node. The root has none.
func (n *Node) Parent(ctx context.Context) (*Node, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	if n.rec.ParentID == "" {
		return nil, newError(ErrCodeItemNotFound, n.rec.Path, "root node has no parent")
	}
	return n.session.NodeByIdentifier(ctx, n.rec.ParentID)
}

// AddNode creates a child node of the given primary type. The new node is
// pending until the session is saved.
func (n *Node) AddNode(ctx context.Context, name, primaryType string) (*Node, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	s := n.session
	reg := s.repo.registry
	childPath := joinPath(n.rec.Path, name)

	if err := validateName(name); err != nil {
		return nil, wrapError(ErrCodeConstraint, childPath, err, "invalid node name")
	}
	prefix, _, err := schema.SplitName(name)
	if err != nil {
		return nil, wrapError(ErrCodeConstraint, childPath, err, "invalid node name")
	}
	if _, known := reg.NamespaceURI(prefix); prefix != "" && !known {
		return nil, newError(ErrCodeNamespace, childPath, "unknown namespace prefix %q", prefix)
	}

	nt, ok := reg.NodeType(primaryType)
	if !ok {
		return nil, newError(ErrCodeNoSuchNodeType, childPath, "node type %q is not registered", primaryType)
	}
	if nt.Mixin || nt.Abstract {
		return nil, newError(ErrCodeConstraint, childPath, "node type %q cannot be a primary type", primaryType)
	}
	if !reg.AllowsChild(n.rec.PrimaryType, name, primaryType) {
		return nil, newError(ErrCodeConstraint, childPath,
			"node type %q does not allow child %q of type %q", n.rec.PrimaryType, name, primaryType)
	}

	exists, err := s.pathExists(ctx, childPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, newError(ErrCodeItemExists, childPath, "node already exists")
	}

	rec := &ir.NodeRecord{
		ID:          s.repo.ids.Generate(),
		Workspace:   s.workspace,
		ParentID:    n.rec.ID,
		Name:        name,
		Path:        childPath,
		PrimaryType: primaryType,
		Seq:         s.repo.order.stamp(),
		Properties:  map[string]ir.PropertyRecord{},
	}
	s.items[rec.ID] = rec
	s.dirty[rec.ID] = true
	return &Node{session: s, rec: rec}, nil
}

func (s *Session) pathExists(ctx context.Context, path string) (bool, error) {
	for _, rec := range s.items {
		if rec.Path == path {
			return true, nil
		}
	}
	if s.isRemoved(path) {
		return false, nil
	}
	_, err := s.repo.store.ReadNodeByPath(ctx, s.workspace, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	}
	return false, wrapError(ErrCodeRepository, path, err, "read node")
}

// SetProperty assigns a property.
//
// The property must be defined by the node's type (or allowed by a
// residual definition) and values are converted to the defined type. A
// multi-valued definition always stores a list, even for one value; a
// single-valued definition takes exactly one value, and zero values remove
// the property. Reference targets are checked on Save.
func (n *Node) SetProperty(name string, values ...ir.Value) error {
	if err := n.check(); err != nil {
		return err
	}
	path := joinPath(n.rec.Path, name)

	if isPseudoProperty(name) {
		return newError(ErrCodeConstraint, path, "property %q is protected", name)
	}
	def, ok := n.session.repo.registry.PropertyDefinition(n.rec.PrimaryType, name)
	if !ok {
		return newError(ErrCodeConstraint, path, "no definition for property %q on node type %q", name, n.rec.PrimaryType)
	}
	if def.Protected {
		return newError(ErrCodeConstraint, path, "property %q is protected", name)
	}

	residual := def.Name == schema.ResidualName
	multiple := def.Multiple || (residual && len(values) > 1)
	if !multiple && len(values) == 0 {
		if _, exists := n.rec.Properties[name]; exists {
			delete(n.rec.Properties, name)
			n.session.dirty[n.rec.ID] = true
		}
		return nil
	}
	if !multiple && len(values) > 1 {
		return newError(ErrCodeConstraint, path, "property %q is single-valued, got %d values", name, len(values))
	}

	typ := def.Type
	converted := make([]ir.Value, len(values))
	for i, v := range values {
		if v == nil {
			return newError(ErrCodeValueFormat, path, "value %d is nil", i)
		}
		if typ == ir.TypeUndefined {
			typ = v.Type()
		}
		c, err := ir.Convert(v, typ)
		if err != nil {
			return wrapError(ErrCodeValueFormat, path, err, "property %q requires %s values", name, typ)
		}
		converted[i] = c
	}
	if typ == ir.TypeUndefined {
		typ = ir.TypeString
	}

	n.rec.Properties[name] = ir.PropertyRecord{Name: name, Type: typ, Multiple: multiple, Values: converted}
	n.session.dirty[n.rec.ID] = true
	return nil
}

// Property returns a property of the node, including jcr:primaryType and,
// on referenceable nodes, jcr:uuid.
func (n *Node) Property(name string) (*Property, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	rec, ok := n.property(name)
	if !ok {
		return nil, newError(ErrCodePathNotFound, joinPath(n.rec.Path, name), "property not found")
	}
	return &Property{node: n, rec: rec}, nil
}

// HasProperty reports whether the property is present.
func (n *Node) HasProperty(name string) bool {
	if n.check() != nil {
		return false
	}
	_, ok := n.property(name)
	return ok
}

// Properties returns every property of the node sorted by name.
func (n *Node) Properties() ([]*Property, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	names := n.rec.PropertyNames()
	names = append(names, ir.PropPrimaryType)
	if n.isReferenceable() {
		names = append(names, ir.PropUUID)
	}
	slices.Sort(names)

	out := make([]*Property, 0, len(names))
	for _, name := range names {
		rec, _ := n.property(name)
		out = append(out, &Property{node: n, rec: rec})
	}
	return out, nil
}

func (n *Node) property(name string) (ir.PropertyRecord, bool) {
	switch name {
	case ir.PropPrimaryType:
		return ir.PropertyRecord{Name: name, Type: ir.TypeString, Values: []ir.Value{ir.String(n.rec.PrimaryType)}}, true
	case ir.PropUUID:
		if !n.isReferenceable() {
			return ir.PropertyRecord{}, false
		}
		return ir.PropertyRecord{Name: name, Type: ir.TypeString, Values: []ir.Value{ir.String(n.rec.ID)}}, true
	}
	rec, ok := n.rec.Properties[name]
	return rec, ok
}

func (n *Node) isReferenceable() bool {
	return n.session.repo.registry.IsReferenceable(n.rec.PrimaryType)
}

// Nodes returns the child nodes in creation order.
func (n *Node) Nodes(ctx context.Context) ([]*Node, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	s := n.session

	stored, err := s.repo.store.ReadChildren(ctx, s.workspace, n.rec.ID)
	if err != nil {
		return nil, wrapError(ErrCodeRepository, n.rec.Path, err, "read children")
	}

	seen := make(map[string]bool)
	var out []*Node
	for _, rec := range stored {
		if s.isRemoved(rec.Path) {
			continue
		}
		seen[rec.ID] = true
		out = append(out, s.adopt(rec))
	}
	for _, rec := range s.items {
		if rec.ParentID == n.rec.ID && !seen[rec.ID] {
			out = append(out, &Node{session: s, rec: rec})
		}
	}

	slices.SortFunc(out, func(a, b *Node) int {
		return cmp.Or(cmp.Compare(a.rec.Seq, b.rec.Seq), strings.Compare(a.rec.ID, b.rec.ID))
	})
	return out, nil
}

// Remove deletes the node and its subtree when the session is saved.
func (n *Node) Remove() error {
	if err := n.check(); err != nil {
		return err
	}
	if n.rec.ParentID == "" {
		return newError(ErrCodeConstraint, n.rec.Path, "root node cannot be removed")
	}

	s := n.session
	s.removed[n.rec.ID] = n.rec.Path
	for id, rec := range s.items {
		if rec.Path == n.rec.Path || strings.HasPrefix(rec.Path, n.rec.Path+"/") {
			delete(s.items, id)
			delete(s.dirty, id)
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == ir.RootPath {
		return "/" + name
	}
	return parent + "/" + name
}

func validateName(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	if name == "." || name == ".." {
		return errors.New("name cannot be . or ..")
	}
	if i := strings.IndexAny(name, "/[]*|"); i >= 0 {
		return errors.New("name contains illegal character " + string(name[i]))
	}
	return nil
}
