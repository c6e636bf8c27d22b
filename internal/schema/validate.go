package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
)

// Validation error codes (S100-S199)
const (
	ErrUnknownPrefix      = "S101" // name uses an unregistered namespace prefix
	ErrUnknownSupertype   = "S102" // supertype is neither registered nor defined
	ErrInvalidProperty    = "S103" // property definition is malformed
	ErrSupertypeCycle     = "S104" // supertypes form a cycle
	ErrTypeExists         = "S105" // node type already registered and updates not allowed
	ErrUnknownChildType   = "S106" // child definition requires an unknown type
	ErrInvalidName        = "S107" // empty or malformed qualified name
	ErrNamespaceConflict  = "S108" // prefix already bound to a different URI
	ErrBuiltinRedefined   = "S109" // attempt to redefine a built-in type
	ErrMixinAsPrimaryBase = "S110" // primary type inherits only from mixins
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// RegistrationError carries every validation error found while registering
// a set of definitions. Nothing is registered when it is returned.
type RegistrationError struct {
	Errors []ValidationError
}

func (e *RegistrationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid node type definitions: " + strings.Join(msgs, "; ")
}

// Validate checks definitions against the registry without modifying it.
// Returns all errors found (does not fail-fast).
func Validate(defs *Definitions, reg *Registry, allowUpdate bool) []ValidationError {
	v := &validator{defs: defs, reg: reg, allowUpdate: allowUpdate}
	v.run()
	return v.errs
}

type validator struct {
	defs        *Definitions
	reg         *Registry
	allowUpdate bool
	errs        []ValidationError
	current     string // node type being validated, for line numbers
}

func (v *validator) add(code, field, format string, args ...any) {
	ve := ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
	if pos := v.defs.Pos(v.current); pos.IsValid() {
		ve.Line = pos.Line()
	}
	v.errs = append(v.errs, ve)
}

// prefixKnown reports whether prefix is registered or declared alongside.
func (v *validator) prefixKnown(prefix string) bool {
	if prefix == "" {
		return true
	}
	if _, ok := v.reg.NamespaceURI(prefix); ok {
		return true
	}
	for _, ns := range v.defs.Namespaces {
		if ns.Prefix == prefix {
			return true
		}
	}
	return false
}

// typeKnown reports whether name is registered or defined in this batch.
func (v *validator) typeKnown(name string) bool {
	if _, ok := v.reg.NodeType(name); ok {
		return true
	}
	_, ok := v.local(name)
	return ok
}

func (v *validator) local(name string) (*ir.NodeType, bool) {
	for i := range v.defs.NodeTypes {
		if v.defs.NodeTypes[i].Name == name {
			return &v.defs.NodeTypes[i], true
		}
	}
	return nil, false
}

func (v *validator) checkName(field, name string) bool {
	prefix, local, err := SplitName(name)
	if err != nil {
		v.add(ErrInvalidName, field, "%v", err)
		return false
	}
	if local == "*" {
		return true
	}
	if !v.prefixKnown(prefix) {
		v.add(ErrUnknownPrefix, field, "namespace prefix %q is not registered", prefix)
		return false
	}
	return true
}

func (v *validator) run() {
	for _, ns := range v.defs.Namespaces {
		field := "namespace." + ns.Prefix
		if ns.Prefix == "" || strings.ContainsAny(ns.Prefix, ":/ ") {
			v.add(ErrInvalidName, field, "invalid namespace prefix %q", ns.Prefix)
			continue
		}
		if existing, ok := v.reg.NamespaceURI(ns.Prefix); ok && existing != ns.URI {
			v.add(ErrNamespaceConflict, field, "prefix already bound to %q", existing)
		}
	}

	for _, nt := range v.defs.NodeTypes {
		v.validateNodeType(nt)
	}

	v.checkCycles()
}

func (v *validator) validateNodeType(nt ir.NodeType) {
	v.current = nt.Name
	defer func() { v.current = "" }()

	field := "nodetype:" + nt.Name
	if !v.checkName(field, nt.Name) {
		return
	}

	if isBuiltin(nt.Name) {
		v.add(ErrBuiltinRedefined, field, "built-in node type %q cannot be redefined", nt.Name)
		return
	}

	if _, exists := v.reg.NodeType(nt.Name); exists && !v.allowUpdate {
		v.add(ErrTypeExists, field, "node type %q is already registered", nt.Name)
	}

	primarySuper := false
	for _, st := range nt.Supertypes {
		if !v.typeKnown(st) {
			v.add(ErrUnknownSupertype, field, "unknown supertype %q", st)
			continue
		}
		if !v.isMixin(st) {
			primarySuper = true
		}
	}
	if !nt.Mixin && len(nt.Supertypes) > 0 && !primarySuper {
		v.add(ErrMixinAsPrimaryBase, field, "primary type must extend at least one primary type")
	}

	seen := make(map[string]bool)
	for _, pd := range nt.Properties {
		pfield := field + ".property." + pd.Name
		if seen[pd.Name] {
			v.add(ErrInvalidProperty, pfield, "duplicate property definition")
			continue
		}
		seen[pd.Name] = true
		if !v.checkName(pfield, pd.Name) {
			continue
		}
		if pd.Name == ir.PropUUID || pd.Name == ir.PropPrimaryType {
			v.add(ErrInvalidProperty, pfield, "%s is maintained by the repository", pd.Name)
		}
		if pd.Type == ir.TypeUndefined && pd.Name != "*" {
			v.add(ErrInvalidProperty, pfield, "named property must declare a type")
		}
	}

	for _, cd := range nt.Children {
		cfield := field + ".child." + cd.Name
		if cd.Name != "*" && !v.checkName(cfield, cd.Name) {
			continue
		}
		if !v.typeKnown(cd.RequiredType) {
			v.add(ErrUnknownChildType, cfield, "unknown required type %q", cd.RequiredType)
		}
	}
}

func (v *validator) isMixin(name string) bool {
	if nt, ok := v.local(name); ok {
		return nt.Mixin
	}
	if nt, ok := v.reg.NodeType(name); ok {
		return nt.Mixin
	}
	return false
}

// checkCycles detects supertype cycles among the new definitions.
func (v *validator) checkCycles() {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)

	var visit func(name string) bool
	visit = func(name string) bool {
		nt, ok := v.local(name)
		if !ok {
			return false // registered types are already acyclic
		}
		switch color[name] {
		case grey:
			return true
		case black:
			return false
		}
		color[name] = grey
		for _, st := range nt.Supertypes {
			if visit(st) {
				return true
			}
		}
		color[name] = black
		return false
	}

	for _, nt := range v.defs.NodeTypes {
		if color[nt.Name] == white && visit(nt.Name) {
			v.current = nt.Name
			v.add(ErrSupertypeCycle, "nodetype:"+nt.Name, "supertype hierarchy contains a cycle")
		}
	}
}

// SplitName splits a qualified name "prefix:local" into its parts.
// Names without a colon use the empty prefix.
func SplitName(name string) (prefix, local string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("name must not be empty")
	}
	idx := strings.IndexByte(name, ':')
	if idx < 0 {
		return "", name, nil
	}
	prefix, local = name[:idx], name[idx+1:]
	if prefix == "" || local == "" || strings.ContainsRune(local, ':') {
		return "", "", fmt.Errorf("malformed qualified name %q", name)
	}
	return prefix, local, nil
}
