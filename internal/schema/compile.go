package schema

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/refjoin/internal/ir"
)

// Definitions is the compiled content of one schema source.
type Definitions struct {
	Namespaces []ir.Namespace
	NodeTypes  []ir.NodeType

	positions map[string]token.Pos // node type name -> declaration position
}

// Pos returns the source position a node type was declared at.
func (d *Definitions) Pos(nodeType string) token.Pos {
	if d.positions == nil {
		return token.NoPos
	}
	return d.positions[nodeType]
}

// cueNodeType mirrors the CUE shape of a node type for Decode.
type cueNodeType struct {
	Supertypes []string               `json:"supertypes"`
	Mixin      bool                   `json:"mixin"`
	Abstract   bool                   `json:"abstract"`
	Residual   bool                   `json:"residual"`
	Property   map[string]cueProperty `json:"property"`
	Child      map[string]cueChild    `json:"child"`
}

type cueProperty struct {
	Type      string `json:"type"`
	Multiple  bool   `json:"multiple"`
	Mandatory bool   `json:"mandatory"`
}

type cueChild struct {
	Type string `json:"type"`
}

// Compile parses a CUE schema source into Definitions.
// Uses the CUE Go API directly (not the CLI).
//
// filename is only used for error positions.
func Compile(src []byte, filename string) (*Definitions, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// CompileValue extracts Definitions from an already built CUE value.
func CompileValue(v cue.Value) (*Definitions, error) {
	defs := &Definitions{positions: make(map[string]token.Pos)}

	nsVal := v.LookupPath(cue.ParsePath("namespace"))
	if nsVal.Exists() {
		iter, err := nsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			uri, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "namespace." + iter.Label(),
					Message: "namespace URI must be a string",
					Pos:     iter.Value().Pos(),
				}
			}
			defs.Namespaces = append(defs.Namespaces, ir.Namespace{Prefix: iter.Label(), URI: uri})
		}
	}

	typesVal := v.LookupPath(cue.ParsePath("nodetype"))
	if !typesVal.Exists() {
		if len(defs.Namespaces) == 0 {
			return nil, &CompileError{
				Field:   "nodetype",
				Message: "schema declares no namespaces and no node types",
				Pos:     v.Pos(),
			}
		}
		return defs, nil
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		nt, err := compileNodeType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs.NodeTypes = append(defs.NodeTypes, *nt)
		defs.positions[nt.Name] = iter.Value().Pos()
	}

	return defs, nil
}

// compileNodeType decodes a single node type declaration.
func compileNodeType(name string, v cue.Value) (*ir.NodeType, error) {
	var raw cueNodeType
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}

	nt := &ir.NodeType{
		Name:       name,
		Supertypes: raw.Supertypes,
		Mixin:      raw.Mixin,
		Abstract:   raw.Abstract,
		Residual:   raw.Residual,
	}

	// Map iteration order is random; sort for deterministic definitions.
	propNames := make([]string, 0, len(raw.Property))
	for p := range raw.Property {
		propNames = append(propNames, p)
	}
	sort.Strings(propNames)

	for _, p := range propNames {
		def := raw.Property[p]
		typ := ir.TypeUndefined
		var err error
		if def.Type != "" {
			typ, err = ir.ParseValueType(def.Type)
		}
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("nodetype.%q.property.%q.type", name, p),
				Message: err.Error(),
				Pos:     v.LookupPath(cue.MakePath(cue.Str("property"), cue.Str(p))).Pos(),
			}
		}
		nt.Properties = append(nt.Properties, ir.PropertyDefinition{
			Name:      p,
			Type:      typ,
			Multiple:  def.Multiple,
			Mandatory: def.Mandatory,
		})
	}

	childNames := make([]string, 0, len(raw.Child))
	for c := range raw.Child {
		childNames = append(childNames, c)
	}
	sort.Strings(childNames)

	for _, c := range childNames {
		required := raw.Child[c].Type
		if required == "" {
			required = ir.NodeTypeBase
		}
		nt.Children = append(nt.Children, ir.ChildDefinition{Name: c, RequiredType: required})
	}

	return nt, nil
}

// CompileError reports a schema compile failure with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
