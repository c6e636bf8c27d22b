package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/refjoin/internal/ir"
)

// Built-in namespace URIs.
const (
	NamespaceJCR   = "http://www.jcp.org/jcr/1.0"
	NamespaceNT    = "http://www.jcp.org/jcr/nt/1.0"
	NamespaceMixin = "http://www.jcp.org/jcr/mix/1.0"
)

// ResidualName is the property definition name that matches any property.
const ResidualName = "*"

// Registry holds the namespaces and node types of a repository.
//
// Thread-safety: Registry is safe for concurrent use. Registration replaces
// definitions atomically; readers never observe a partially applied batch.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]string // prefix -> URI
	types      map[string]*ir.NodeType
}

// NewRegistry creates a registry holding only the built-in definitions.
func NewRegistry() *Registry {
	r := &Registry{
		namespaces: map[string]string{
			"jcr": NamespaceJCR,
			"nt":  NamespaceNT,
			"mix": NamespaceMixin,
		},
		types: make(map[string]*ir.NodeType),
	}
	for _, nt := range builtinTypes() {
		nt := nt
		r.types[nt.Name] = &nt
	}
	return r
}

func builtinTypes() []ir.NodeType {
	return []ir.NodeType{
		{
			Name:     ir.NodeTypeBase,
			Abstract: true,
			Properties: []ir.PropertyDefinition{
				{Name: ir.PropPrimaryType, Type: ir.TypeString, Mandatory: true, Protected: true},
			},
		},
		{
			Name:  ir.MixinReferenceable,
			Mixin: true,
			Properties: []ir.PropertyDefinition{
				{Name: ir.PropUUID, Type: ir.TypeString, Mandatory: true, Protected: true},
			},
		},
		{
			Name:       ir.NodeTypeUnstructured,
			Supertypes: []string{ir.NodeTypeBase},
			Residual:   true,
			Children:   []ir.ChildDefinition{{Name: "*", RequiredType: ir.NodeTypeBase}},
		},
	}
}

func isBuiltin(name string) bool {
	switch name {
	case ir.NodeTypeBase, ir.MixinReferenceable, ir.NodeTypeUnstructured:
		return true
	}
	return false
}

// RegisterNamespace binds prefix to uri. Rebinding a prefix to the same URI
// is a no-op; rebinding it to a different URI is an error.
func (r *Registry) RegisterNamespace(prefix, uri string) error {
	if prefix == "" || uri == "" {
		return fmt.Errorf("namespace prefix and URI must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.namespaces[prefix]; ok {
		if existing == uri {
			return nil
		}
		return fmt.Errorf("prefix %q already bound to %q", prefix, existing)
	}
	for p, u := range r.namespaces {
		if u == uri {
			return fmt.Errorf("namespace %q already registered with prefix %q", uri, p)
		}
	}
	r.namespaces[prefix] = uri
	return nil
}

// NamespaceURI returns the URI bound to prefix.
func (r *Registry) NamespaceURI(prefix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.namespaces[prefix]
	return uri, ok
}

// Namespaces returns all registered namespaces sorted by prefix.
func (r *Registry) Namespaces() []ir.Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ir.Namespace, 0, len(r.namespaces))
	for p, u := range r.namespaces {
		out = append(out, ir.Namespace{Prefix: p, URI: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// RegisterNodeTypes validates defs and, if valid, registers their namespaces and
// node types. Returns a *RegistrationError listing every problem otherwise.
func (r *Registry) RegisterNodeTypes(defs *Definitions, allowUpdate bool) error {
	if errs := Validate(defs, r, allowUpdate); len(errs) > 0 {
		return &RegistrationError{Errors: errs}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ns := range defs.Namespaces {
		r.namespaces[ns.Prefix] = ns.URI
	}
	for _, nt := range defs.NodeTypes {
		nt := nt
		r.types[nt.Name] = &nt
	}
	return nil
}

// Restore installs previously persisted definitions without validation.
// Used when reopening a file-backed repository.
func (r *Registry) Restore(namespaces []ir.Namespace, types []ir.NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ns := range namespaces {
		r.namespaces[ns.Prefix] = ns.URI
	}
	for _, nt := range types {
		if isBuiltin(nt.Name) {
			continue
		}
		nt := nt
		r.types[nt.Name] = &nt
	}
}

// NodeType returns the registered node type with the given name.
func (r *Registry) NodeType(name string) (*ir.NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[name]
	return nt, ok
}

// NodeTypes returns every registered node type sorted by name.
func (r *Registry) NodeTypes() []ir.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ir.NodeType, 0, len(r.types))
	for _, nt := range r.types {
		out = append(out, *nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CustomNodeTypes returns the non built-in node types sorted by name.
func (r *Registry) CustomNodeTypes() []ir.NodeType {
	all := r.NodeTypes()
	out := all[:0]
	for _, nt := range all {
		if !isBuiltin(nt.Name) {
			out = append(out, nt)
		}
	}
	return out
}

// IsSubtype reports whether name is super or inherits from it.
// Every type is a subtype of nt:base.
func (r *Registry) IsSubtype(name, super string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isSubtype(name, super, make(map[string]bool))
}

func (r *Registry) isSubtype(name, super string, seen map[string]bool) bool {
	if name == super {
		return true
	}
	if super == ir.NodeTypeBase {
		_, ok := r.types[name]
		return ok
	}
	if seen[name] {
		return false
	}
	seen[name] = true

	nt, ok := r.types[name]
	if !ok {
		return false
	}
	for _, st := range nt.Supertypes {
		if r.isSubtype(st, super, seen) {
			return true
		}
	}
	return false
}

// Subtypes returns the primary (non-mixin) types that satisfy name,
// including name itself when it is a primary type. Sorted by name.
func (r *Registry) Subtypes(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for tn, nt := range r.types {
		if nt.Mixin {
			continue
		}
		if r.isSubtype(tn, name, make(map[string]bool)) {
			out = append(out, tn)
		}
	}
	sort.Strings(out)
	return out
}

// IsReferenceable reports whether nodes of the type carry jcr:uuid.
func (r *Registry) IsReferenceable(name string) bool {
	return r.IsSubtype(name, ir.MixinReferenceable)
}

// PropertyDefinition resolves the definition that governs prop on nodes of
// typeName, walking supertypes. Named definitions win over residual ones;
// a residual match is returned with Name == ResidualName.
func (r *Registry) PropertyDefinition(typeName, prop string) (ir.PropertyDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	residual := false
	for _, tn := range r.lineage(typeName) {
		nt := r.types[tn]
		if pd, ok := nt.Property(prop); ok {
			return pd, true
		}
		if nt.Residual {
			residual = true
		}
	}
	if residual {
		return ir.PropertyDefinition{Name: ResidualName, Type: ir.TypeUndefined}, true
	}
	return ir.PropertyDefinition{}, false
}

// Properties returns every named property definition effective on
// typeName, including inherited ones, sorted by name.
func (r *Registry) Properties(typeName string) []ir.PropertyDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := make(map[string]ir.PropertyDefinition)
	for _, tn := range r.lineage(typeName) {
		for _, pd := range r.types[tn].Properties {
			if _, dup := byName[pd.Name]; !dup {
				byName[pd.Name] = pd
			}
		}
	}

	out := make([]ir.PropertyDefinition, 0, len(byName))
	for _, pd := range byName {
		out = append(out, pd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllowsChild reports whether a node of parentType accepts a child called
// childName of childType.
func (r *Registry) AllowsChild(parentType, childName, childType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tn := range r.lineage(parentType) {
		for _, cd := range r.types[tn].Children {
			if cd.Name != "*" && cd.Name != childName {
				continue
			}
			if r.isSubtype(childType, cd.RequiredType, make(map[string]bool)) {
				return true
			}
		}
	}
	return false
}

// lineage returns typeName followed by all of its supertypes, breadth
// first, each once. Callers must hold r.mu.
func (r *Registry) lineage(typeName string) []string {
	var out []string
	seen := make(map[string]bool)
	queue := []string{typeName}
	for len(queue) > 0 {
		tn := queue[0]
		queue = queue[1:]
		if seen[tn] {
			continue
		}
		seen[tn] = true
		nt, ok := r.types[tn]
		if !ok {
			continue
		}
		out = append(out, tn)
		queue = append(queue, nt.Supertypes...)
	}
	if len(out) > 0 && typeName != ir.NodeTypeBase && !seen[ir.NodeTypeBase] {
		out = append(out, ir.NodeTypeBase)
	}
	return out
}
