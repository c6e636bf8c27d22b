// Package schema compiles node type definitions and keeps the registry of
// namespaces and node types a repository workspace enforces.
//
// Node types are written in CUE:
//
//	namespace: sramp: "http://s-ramp.org/xmlns/2010/s-ramp#"
//
//	nodetype: "sramp:artifact": {
//	    supertypes: ["nt:base", "mix:referenceable"]
//	    property: "sramp:name": type: "string"
//	    child: "*": type: "sramp:relationship"
//	}
//
//	nodetype: "sramp:relationship": {
//	    supertypes: ["nt:base"]
//	    property: "sramp:type": type: "string"
//	    property: "sramp:target": {type: "reference", multiple: true}
//	}
//
// Compile turns a CUE source into Definitions; Registry.Register validates
// them against what is already registered and makes them visible to
// sessions and the query layer. Three built-in types are always present:
// nt:base, mix:referenceable (adds jcr:uuid) and nt:unstructured (residual,
// the root node type).
package schema
