package queryir

import (
	"fmt"

	"github.com/roach88/refjoin/internal/ir"
)

// Query is a parsed JCR-SQL2 statement.
type Query struct {
	Statement  string // original text, for error positions
	Columns    []Column
	Source     Source
	Constraint Constraint // nil = no WHERE
	Orderings  []Ordering
}

// Source is where a query draws its tuples from.
//
// This is a sealed interface - only Selector and Join implement it.
type Source interface {
	sourceNode() // Marker method - seals interface to this package
}

// Selector binds Name to every node whose primary type is NodeType or a
// subtype of it.
//
// Example:
//
//	[sramp:artifact] AS artifact
//
// gives Selector{NodeType: "sramp:artifact", Name: "artifact"}. When no
// alias is written the selector is named after its node type.
type Selector struct {
	NodeType string
	Name     string
	Pos      int
}

func (Selector) sourceNode() {}

// JoinType selects inner or left outer join semantics.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
)

func (t JoinType) String() string {
	if t == LeftOuterJoin {
		return "LEFT OUTER JOIN"
	}
	return "INNER JOIN"
}

// Join combines two sources.
//
// Semantics:
//
//	<left> [INNER|LEFT OUTER] JOIN <right> ON <condition>
//
// An inner join emits one tuple per (left, right) pair satisfying the
// condition. A left outer join additionally emits each left tuple that
// matched nothing, with the right selectors unbound.
//
// Joins are left-deep as written: the parser nests earlier joins on the
// Left side.
type Join struct {
	Left      Source
	Right     Source
	Type      JoinType
	Condition JoinCondition
}

func (Join) sourceNode() {}

// JoinCondition relates the selectors of a Join.
//
// This is a sealed interface - only types in this package implement it.
type JoinCondition interface {
	joinConditionNode() // Marker method - seals interface to this package
}

// ChildNodeJoin is ISCHILDNODE(child, parent): the Child node is a direct
// child of the Parent node.
type ChildNodeJoin struct {
	Child  string
	Parent string
	Pos    int
}

func (ChildNodeJoin) joinConditionNode() {}

// DescendantNodeJoin is ISDESCENDANTNODE(descendant, ancestor).
type DescendantNodeJoin struct {
	Descendant string
	Ancestor   string
	Pos        int
}

func (DescendantNodeJoin) joinConditionNode() {}

// SameNodeJoin is ISSAMENODE(selector1, selector2).
type SameNodeJoin struct {
	Selector1 string
	Selector2 string
	Pos       int
}

func (SameNodeJoin) joinConditionNode() {}

// EquiJoin is selector1.[property1] = selector2.[property2].
//
// The condition is satisfied when any value of property1 equals any value
// of property2. With a multi-valued reference on one side the join fans
// out: one tuple per matching value.
//
// Example:
//
//	relationship1.[sramp:target] = artifact2.[jcr:uuid]
type EquiJoin struct {
	Selector1 string
	Property1 string
	Selector2 string
	Property2 string
	Pos       int
}

func (EquiJoin) joinConditionNode() {}

// Constraint is a WHERE condition.
//
// This is a sealed interface - only types in this package implement it.
type Constraint interface {
	constraintNode() // Marker method - seals interface to this package
}

// And is satisfied when both sides are.
type And struct {
	Left  Constraint
	Right Constraint
}

func (And) constraintNode() {}

// Or is satisfied when either side is.
type Or struct {
	Left  Constraint
	Right Constraint
}

func (Or) constraintNode() {}

// Not negates a constraint.
type Not struct {
	Constraint Constraint
}

func (Not) constraintNode() {}

// Operator is a comparison operator.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLike
)

var operatorText = map[Operator]string{
	OpEqual:              "=",
	OpNotEqual:           "<>",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLike:               "LIKE",
}

func (o Operator) String() string {
	if s, ok := operatorText[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Comparison compares a dynamic operand with a literal.
//
// Example:
//
//	artifact.[sramp:name] = 'B'
//
// gives Comparison{Operand: PropertyValue{...}, Operator: OpEqual,
// Literal: ir.String("B")}.
type Comparison struct {
	Operand  DynamicOperand
	Operator Operator
	Literal  ir.Value
}

func (Comparison) constraintNode() {}

// PropertyExistence is selector.[property] IS NOT NULL.
// IS NULL is written as Not{PropertyExistence}.
type PropertyExistence struct {
	Selector string
	Property string
	Pos      int
}

func (PropertyExistence) constraintNode() {}

// ChildNode is ISCHILDNODE(selector, '/parent/path').
type ChildNode struct {
	Selector string
	Path     string
	Pos      int
}

func (ChildNode) constraintNode() {}

// DescendantNode is ISDESCENDANTNODE(selector, '/ancestor/path').
type DescendantNode struct {
	Selector string
	Path     string
	Pos      int
}

func (DescendantNode) constraintNode() {}

// SameNode is ISSAMENODE(selector, '/path').
type SameNode struct {
	Selector string
	Path     string
	Pos      int
}

func (SameNode) constraintNode() {}

// DynamicOperand evaluates to zero or more values per tuple.
//
// This is a sealed interface - only types in this package implement it.
type DynamicOperand interface {
	operandNode() // Marker method - seals interface to this package
}

// PropertyValue is selector.[property].
type PropertyValue struct {
	Selector string
	Property string
	Pos      int
}

func (PropertyValue) operandNode() {}

// NodeName is NAME(selector): the qualified name of the node.
type NodeName struct {
	Selector string
	Pos      int
}

func (NodeName) operandNode() {}

// NodeLocalName is LOCALNAME(selector): the name without its prefix.
type NodeLocalName struct {
	Selector string
	Pos      int
}

func (NodeLocalName) operandNode() {}

// LowerCase is LOWER(operand).
type LowerCase struct {
	Operand DynamicOperand
}

func (LowerCase) operandNode() {}

// UpperCase is UPPER(operand).
type UpperCase struct {
	Operand DynamicOperand
}

func (UpperCase) operandNode() {}

// Column is one projected column.
//
// Property "" projects every property of the selector (sel.*); Selector ""
// with Property "" is the bare SELECT * over all selectors. Name is the
// column's result name: the alias when given, otherwise "selector.property"
// for joins and "property" for single-selector queries.
type Column struct {
	Selector string
	Property string
	Name     string
	Pos      int
}

// IsWildcard reports whether the column expands to several properties.
func (c Column) IsWildcard() bool {
	return c.Property == ""
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Operand    DynamicOperand
	Descending bool
}

// Selectors returns the selectors of a source in left-to-right order.
func Selectors(src Source) []Selector {
	switch s := src.(type) {
	case Selector:
		return []Selector{s}
	case Join:
		return append(Selectors(s.Left), Selectors(s.Right)...)
	}
	return nil
}

// SelectorNames returns the selector names of the query in source order.
func (q *Query) SelectorNames() []string {
	sels := Selectors(q.Source)
	names := make([]string, len(sels))
	for i, s := range sels {
		names[i] = s.Name
	}
	return names
}
