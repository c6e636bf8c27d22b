package ir

import "sort"

// NodeRecord is a persisted node as read from the store.
type NodeRecord struct {
	ID          string                    `json:"id"`
	Workspace   string                    `json:"workspace"`
	ParentID    string                    `json:"parent_id,omitempty"` // empty for the root
	Name        string                    `json:"name"`
	Path        string                    `json:"path"`
	PrimaryType string                    `json:"primary_type"`
	Seq         int64                     `json:"seq"` // creation order
	Properties  map[string]PropertyRecord `json:"properties"`
}

// PropertyRecord is a persisted property. Values keeps assignment order.
type PropertyRecord struct {
	Name     string    `json:"name"`
	Type     ValueType `json:"type"`
	Multiple bool      `json:"multiple"`
	Values   []Value   `json:"values"`
}

// PropertyNames returns the property names of the node in sorted order.
func (n *NodeRecord) PropertyNames() []string {
	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the record.
func (n *NodeRecord) Clone() *NodeRecord {
	c := *n
	c.Properties = make(map[string]PropertyRecord, len(n.Properties))
	for name, p := range n.Properties {
		p.Values = append([]Value(nil), p.Values...)
		c.Properties[name] = p
	}
	return &c
}
