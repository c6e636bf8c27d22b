// Package queryir provides the abstract query representation (IR) for
// JCR-SQL2 statements.
//
// The IR is the boundary between the text parser and the execution engine:
//
//	[JCR-SQL2 text] → sql2.Parse → [Query IR] → Validate → engine.Execute
//	                                                       ↘ querysql (per selector push-down)
//
// QUERY MODEL:
//
// A Query has a Source (a single Selector or a tree of Joins), an optional
// Constraint, a projection (Columns) and Orderings.
//
//   - Selector: nodes of a node type (and its subtypes) bound to a name
//   - Join: INNER or LEFT OUTER, with a JoinCondition
//   - JoinCondition: ChildNodeJoin, DescendantNodeJoin, SameNodeJoin, EquiJoin
//   - Constraint: And, Or, Not, Comparison, PropertyExistence, ChildNode,
//     DescendantNode, SameNode
//   - DynamicOperand: PropertyValue, NodeName, NodeLocalName, LowerCase,
//     UpperCase
//
// MULTI-VALUED PROPERTIES:
//
// The IR is agnostic about cardinality; the engine gives it meaning:
//
//   - A Column over a multi-valued property yields one row holding every
//     value of the property.
//   - An EquiJoin over a multi-valued property is satisfied when any value
//     equals the other side, producing one row per matching pair.
//   - A Comparison over a multi-valued property is satisfied when any value
//     satisfies it.
//
// SEALED INTERFACES:
//
// Source, JoinCondition, Constraint and DynamicOperand are sealed
// interfaces using the marker method pattern. Only types in this package
// implement them, so type switches in the engine and SQL compiler are
// exhaustive.
//
//	switch c := constraint.(type) {
//	case And:
//	case Or:
//	case Comparison:
//	// ...
//	}
//
// VALUES:
//
// Literals are ir.Value (String, Long, Boolean, Reference). No floats.
//
// VALIDATION:
//
// Validate resolves every selector and property reference against the node
// type registry and reports the first problem as a *QueryError with a code
// and byte offset into the statement.
package queryir
