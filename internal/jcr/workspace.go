package jcr

import (
	"context"
	"io"

	"github.com/roach88/refjoin/internal/ir"
)

// Workspace gives access to the repository-wide registries and the query
// manager through a session.
type Workspace struct {
	session *Session
}

// Name returns the workspace name.
func (w *Workspace) Name() string { return w.session.workspace }

// Session returns the owning session.
func (w *Workspace) Session() *Session { return w.session }

// NamespaceRegistry returns the namespace registry.
func (w *Workspace) NamespaceRegistry() *NamespaceRegistry {
	return &NamespaceRegistry{session: w.session}
}

// NodeTypeManager returns the node type manager.
func (w *Workspace) NodeTypeManager() *NodeTypeManager {
	return &NodeTypeManager{session: w.session}
}

// QueryManager returns the query manager.
func (w *Workspace) QueryManager() *QueryManager {
	return &QueryManager{session: w.session}
}

// NamespaceRegistry manages prefix to URI bindings. Registrations are
// persisted immediately; they are not part of the session's pending changes.
type NamespaceRegistry struct {
	session *Session
}

// RegisterNamespace binds prefix to uri. Re-registering the same binding
// is a no-op; rebinding a prefix or reusing a URI fails with NAMESPACE.
func (nr *NamespaceRegistry) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	if err := nr.session.check(); err != nil {
		return err
	}
	return nr.session.repo.registerNamespace(ctx, prefix, uri)
}

// URI returns the URI bound to prefix.
func (nr *NamespaceRegistry) URI(prefix string) (string, error) {
	if err := nr.session.check(); err != nil {
		return "", err
	}
	uri, ok := nr.session.repo.registry.NamespaceURI(prefix)
	if !ok {
		return "", newError(ErrCodeNamespace, "", "prefix %q is not registered", prefix)
	}
	return uri, nil
}

// Prefixes returns the registered prefixes in sorted order.
func (nr *NamespaceRegistry) Prefixes() []string {
	namespaces := nr.session.repo.registry.Namespaces()
	out := make([]string, len(namespaces))
	for i, ns := range namespaces {
		out[i] = ns.Prefix
	}
	return out
}

// NodeTypeManager registers and looks up node types.
type NodeTypeManager struct {
	session *Session
}

// RegisterNodeTypes reads a CUE schema and registers its namespaces and
// node types. With allowUpdate, already registered custom types are
// replaced; otherwise redefining one fails. Registrations are persisted
// immediately.
func (m *NodeTypeManager) RegisterNodeTypes(ctx context.Context, r io.Reader, allowUpdate bool) error {
	if err := m.session.check(); err != nil {
		return err
	}
	src, err := io.ReadAll(r)
	if err != nil {
		return wrapError(ErrCodeNodeTypeDefinition, "", err, "read node type schema")
	}
	return m.session.repo.registerNodeTypes(ctx, src, "schema.cue", allowUpdate)
}

// NodeType returns a registered node type.
func (m *NodeTypeManager) NodeType(name string) (*ir.NodeType, error) {
	nt, ok := m.session.repo.registry.NodeType(name)
	if !ok {
		return nil, newError(ErrCodeNoSuchNodeType, "", "node type %q is not registered", name)
	}
	return nt, nil
}

// HasNodeType reports whether name is registered.
func (m *NodeTypeManager) HasNodeType(name string) bool {
	_, ok := m.session.repo.registry.NodeType(name)
	return ok
}

// NodeTypes returns every registered node type, built-ins included.
func (m *NodeTypeManager) NodeTypes() []ir.NodeType {
	return m.session.repo.registry.NodeTypes()
}
