package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

func eq(selector, property, value string) queryir.Comparison {
	return queryir.Comparison{
		Operand:  queryir.PropertyValue{Selector: selector, Property: property},
		Operator: queryir.OpEqual,
		Literal:  ir.String(value),
	}
}

func TestPushdown_SplitsConjunctsBySelector(t *testing.T) {
	where := queryir.And{
		Left:  eq("artifact1", "sramp:name", "A"),
		Right: eq("relationship1", "sramp:type", "relatesTo"),
	}

	assert.Equal(t, []queryir.Constraint{eq("artifact1", "sramp:name", "A")}, Pushdown(where, "artifact1"))
	assert.Equal(t, []queryir.Constraint{eq("relationship1", "sramp:type", "relatesTo")}, Pushdown(where, "relationship1"))
	assert.Empty(t, Pushdown(where, "artifact2"))
}

func TestPushdown_OrAcrossSelectorsStays(t *testing.T) {
	where := queryir.Or{
		Left:  eq("a", "sramp:name", "A"),
		Right: eq("b", "sramp:name", "B"),
	}
	assert.Empty(t, Pushdown(where, "a"))

	same := queryir.Or{
		Left:  eq("a", "sramp:name", "B"),
		Right: eq("a", "sramp:name", "C"),
	}
	assert.Equal(t, []queryir.Constraint{same}, Pushdown(same, "a"))
}

func TestPushdown_SkipsNonEquality(t *testing.T) {
	like := queryir.Comparison{
		Operand:  queryir.PropertyValue{Selector: "a", Property: "sramp:name"},
		Operator: queryir.OpLike,
		Literal:  ir.String("A%"),
	}
	lower := queryir.Comparison{
		Operand:  queryir.LowerCase{Operand: queryir.PropertyValue{Selector: "a", Property: "sramp:name"}},
		Operator: queryir.OpEqual,
		Literal:  ir.String("a"),
	}

	assert.Empty(t, Pushdown(like, "a"))
	assert.Empty(t, Pushdown(lower, "a"))
	assert.Empty(t, Pushdown(nil, "a"))
}

func TestPushdown_SkipsIntegerLiterals(t *testing.T) {
	count := queryir.Comparison{
		Operand:  queryir.PropertyValue{Selector: "a", Property: "count"},
		Operator: queryir.OpEqual,
		Literal:  ir.String("07"),
	}
	long := count
	long.Literal = ir.Long(7)

	assert.Empty(t, Pushdown(count, "a"))
	assert.Empty(t, Pushdown(long, "a"))
	assert.Empty(t, Pushdown(queryir.Not{Constraint: count}, "a"))
}

func TestPushdown_NegationIsPushed(t *testing.T) {
	not := queryir.Not{Constraint: eq("a", ir.PropUUID, "id-a")}
	assert.Equal(t, []queryir.Constraint{not}, Pushdown(not, "a"))
}
