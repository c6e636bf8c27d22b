package ir

// Namespace maps a prefix to a namespace URI.
type Namespace struct {
	Prefix string `json:"prefix"`
	URI    string `json:"uri"`
}

// NodeType represents a compiled node type definition.
type NodeType struct {
	Name       string               `json:"name"`
	Supertypes []string             `json:"supertypes"`
	Mixin      bool                 `json:"mixin"`
	Abstract   bool                 `json:"abstract"`
	Residual   bool                 `json:"residual"` // any property name allowed
	Properties []PropertyDefinition `json:"properties"`
	Children   []ChildDefinition    `json:"children"`
}

// PropertyDefinition declares a named property on a node type.
type PropertyDefinition struct {
	Name      string    `json:"name"`
	Type      ValueType `json:"type"`
	Multiple  bool      `json:"multiple"`
	Mandatory bool      `json:"mandatory"`
	Protected bool      `json:"protected"` // maintained by the repository
}

// ChildDefinition declares which child nodes a node type accepts.
// Name "*" matches any child name.
type ChildDefinition struct {
	Name         string `json:"name"`
	RequiredType string `json:"required_type"`
}

// Property looks up a property definition declared directly on this type.
// Inherited definitions are resolved by the schema registry.
func (nt *NodeType) Property(name string) (PropertyDefinition, bool) {
	for _, pd := range nt.Properties {
		if pd.Name == name {
			return pd, true
		}
	}
	return PropertyDefinition{}, false
}

// Well-known names shared by the registry, the query layer and the store.
const (
	NodeTypeBase         = "nt:base"
	NodeTypeUnstructured = "nt:unstructured"
	MixinReferenceable   = "mix:referenceable"

	PropPrimaryType = "jcr:primaryType"
	PropUUID        = "jcr:uuid"

	RootPath = "/"
)
