package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType identifies the type of a property value.
type ValueType int

const (
	TypeUndefined ValueType = iota
	TypeString
	TypeLong
	TypeBoolean
	TypeReference
)

var valueTypeNames = map[ValueType]string{
	TypeUndefined: "undefined",
	TypeString:    "string",
	TypeLong:      "long",
	TypeBoolean:   "boolean",
	TypeReference: "reference",
}

// String returns the lowercase type name used in schemas and storage.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType converts a schema type name into a ValueType.
// Matching is case-insensitive ("STRING", "String" and "string" are equal).
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString, nil
	case "long":
		return TypeLong, nil
	case "boolean":
		return TypeBoolean, nil
	case "reference":
		return TypeReference, nil
	case "undefined", "*":
		return TypeUndefined, nil
	}
	return TypeUndefined, fmt.Errorf("unknown value type %q", s)
}

// Value is a sealed interface representing a property value.
// Only String, Long, Boolean and Reference implement it.
// NO float values - floats break deterministic comparison.
type Value interface {
	Type() ValueType
	String() string
	value() // Sealed - only these types implement it
}

// String is a string property value.
type String string

func (String) value() {}
func (String) Type() ValueType { return TypeString }
func (s String) String() string { return string(s) }

// Long is an integer property value. Always int64.
type Long int64

func (Long) value() {}
func (Long) Type() ValueType { return TypeLong }
func (l Long) String() string { return strconv.FormatInt(int64(l), 10) }

// Boolean is a boolean property value.
type Boolean bool

func (Boolean) value() {}
func (Boolean) Type() ValueType { return TypeBoolean }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

// Reference holds the identifier of a referenced node.
// The association is non-owning; the target keeps no back reference.
type Reference string

func (Reference) value() {}
func (Reference) Type() ValueType { return TypeReference }
func (r Reference) String() string { return string(r) }

// ParseValue converts the stored string form of a value back into a Value.
func ParseValue(t ValueType, s string) (Value, error) {
	switch t {
	case TypeString, TypeUndefined:
		return String(s), nil
	case TypeLong:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse long %q: %w", s, err)
		}
		return Long(n), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("parse boolean %q: %w", s, err)
		}
		return Boolean(b), nil
	case TypeReference:
		if s == "" {
			return nil, fmt.Errorf("reference must not be empty")
		}
		return Reference(s), nil
	}
	return nil, fmt.Errorf("unsupported value type: %v", t)
}

// Convert converts v into type t using the string form as the pivot.
// Converting to TypeUndefined returns v unchanged.
func Convert(v Value, t ValueType) (Value, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot convert nil value")
	}
	if t == TypeUndefined || v.Type() == t {
		return v, nil
	}
	return ParseValue(t, v.String())
}

// Equal reports whether two values are equal. Values of different types
// compare by their string form, so a Reference equals the String holding
// the same identifier.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Compare orders two values. Longs compare numerically when both sides are
// Long (or parse as one); everything else compares by string form.
func Compare(a, b Value) int {
	if a.Type() == TypeLong || b.Type() == TypeLong {
		x, errA := strconv.ParseInt(a.String(), 10, 64)
		y, errB := strconv.ParseInt(b.String(), 10, 64)
		if errA == nil && errB == nil {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.String(), b.String())
}

// Strings returns the string form of each value, preserving order.
func Strings(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// MarshalText encodes the type by name so persisted definitions stay readable.
func (t ValueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name written by MarshalText.
func (t *ValueType) UnmarshalText(data []byte) error {
	parsed, err := ParseValueType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
