package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/refjoin/internal/ir"
)

// marshalNodeType converts a node type definition to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON so re-registering an unchanged type writes
// identical bytes.
func marshalNodeType(nt ir.NodeType) (string, error) {
	props := make([]map[string]any, len(nt.Properties))
	for i, pd := range nt.Properties {
		props[i] = map[string]any{
			"name":      pd.Name,
			"type":      pd.Type,
			"multiple":  pd.Multiple,
			"mandatory": pd.Mandatory,
			"protected": pd.Protected,
		}
	}
	children := make([]map[string]any, len(nt.Children))
	for i, cd := range nt.Children {
		children[i] = map[string]any{
			"name":          cd.Name,
			"required_type": cd.RequiredType,
		}
	}
	supertypes := nt.Supertypes
	if supertypes == nil {
		supertypes = []string{}
	}

	data, err := ir.MarshalCanonical(map[string]any{
		"name":       nt.Name,
		"supertypes": supertypes,
		"mixin":      nt.Mixin,
		"abstract":   nt.Abstract,
		"residual":   nt.Residual,
		"properties": props,
		"children":   children,
	})
	if err != nil {
		return "", fmt.Errorf("marshal node type %s: %w", nt.Name, err)
	}
	return string(data), nil
}

// unmarshalNodeType parses canonical JSON TEXT back into a node type.
// Field names match the json tags on ir.NodeType.
func unmarshalNodeType(data string) (ir.NodeType, error) {
	var nt ir.NodeType
	if err := json.Unmarshal([]byte(data), &nt); err != nil {
		return ir.NodeType{}, fmt.Errorf("unmarshal node type: %w", err)
	}
	if len(nt.Supertypes) == 0 {
		nt.Supertypes = nil
	}
	if len(nt.Properties) == 0 {
		nt.Properties = nil
	}
	if len(nt.Children) == 0 {
		nt.Children = nil
	}
	return nt, nil
}
