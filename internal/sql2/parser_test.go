package sql2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

const relatesToQuery = "SELECT relationship.[sramp:target] AS target_jcr_uuid\r\n" +
	"    FROM [sramp:artifact] AS artifact \r\n" +
	"    JOIN [sramp:relationship] AS relationship ON ISCHILDNODE(relationship, artifact) \r\n" +
	"   WHERE artifact.[sramp:name] = 'A'\r\n" +
	"     AND relationship.[sramp:type] = 'relatesTo'\r\n"

const identifierQuery = "SELECT artifact.[jcr:uuid]\r\n" +
	"  FROM [sramp:artifact] AS artifact \r\n" +
	" WHERE artifact.[sramp:name] = 'B' OR artifact.[sramp:name] = 'C'\r\n"

const targetJoinQuery = "SELECT artifact2.*\r\n" +
	"   FROM [sramp:artifact] AS artifact1\r\n" +
	"   JOIN [sramp:relationship] AS relationship1 ON ISCHILDNODE(relationship1, artifact1)\r\n" +
	"   JOIN [sramp:artifact] AS artifact2 ON relationship1.[sramp:target] = artifact2.[jcr:uuid]\r\n" +
	"   WHERE artifact1.[sramp:name] = 'A'\r\n" +
	"    AND relationship1.[sramp:type] = 'relatesTo'\r\n"

func TestParse_ChildJoin(t *testing.T) {
	q, err := Parse(relatesToQuery)
	require.NoError(t, err)

	assert.Equal(t, relatesToQuery, q.Statement)
	assert.Equal(t, []queryir.Column{{
		Selector: "relationship", Property: "sramp:target", Name: "target_jcr_uuid", Pos: 7,
	}}, q.Columns)

	join, ok := q.Source.(queryir.Join)
	require.True(t, ok)
	assert.Equal(t, queryir.InnerJoin, join.Type)
	assert.Equal(t, "artifact", join.Left.(queryir.Selector).Name)
	assert.Equal(t, "sramp:relationship", join.Right.(queryir.Selector).NodeType)

	cond, ok := join.Condition.(queryir.ChildNodeJoin)
	require.True(t, ok)
	assert.Equal(t, "relationship", cond.Child)
	assert.Equal(t, "artifact", cond.Parent)

	and, ok := q.Constraint.(queryir.And)
	require.True(t, ok)
	left := and.Left.(queryir.Comparison)
	assert.Equal(t, queryir.OpEqual, left.Operator)
	assert.Equal(t, ir.String("A"), left.Literal)
	assert.Equal(t, "sramp:name", left.Operand.(queryir.PropertyValue).Property)
}

func TestParse_Or(t *testing.T) {
	q, err := Parse(identifierQuery)
	require.NoError(t, err)

	assert.Equal(t, queryir.Selector{NodeType: "sramp:artifact", Name: "artifact", Pos: 35}, q.Source)
	or, ok := q.Constraint.(queryir.Or)
	require.True(t, ok)
	assert.Equal(t, ir.String("C"), or.Right.(queryir.Comparison).Literal)
}

func TestParse_ReferenceJoin(t *testing.T) {
	q, err := Parse(targetJoinQuery)
	require.NoError(t, err)

	require.Len(t, q.Columns, 1)
	assert.True(t, q.Columns[0].IsWildcard())
	assert.Equal(t, "artifact2", q.Columns[0].Selector)

	assert.Equal(t, []string{"artifact1", "relationship1", "artifact2"}, q.SelectorNames())

	outer := q.Source.(queryir.Join)
	eq, ok := outer.Condition.(queryir.EquiJoin)
	require.True(t, ok)
	assert.Equal(t, "relationship1", eq.Selector1)
	assert.Equal(t, "sramp:target", eq.Property1)
	assert.Equal(t, "artifact2", eq.Selector2)
	assert.Equal(t, ir.PropUUID, eq.Property2)

	_, nested := outer.Left.(queryir.Join)
	assert.True(t, nested, "joins nest on the left")
}

func TestParse_StrayParenthesis(t *testing.T) {
	_, err := Parse(targetJoinQuery + ")")
	require.Error(t, err)

	var qe *queryir.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, queryir.ErrCodeSyntax, qe.Code)
	assert.Equal(t, len(targetJoinQuery), qe.Pos)
	assert.Contains(t, qe.Message, "')'")
}

func TestParse_Constraints(t *testing.T) {
	tests := []struct {
		name  string
		where string
		want  queryir.Constraint
	}{
		{
			name:  "is not null",
			where: "r.[sramp:target] IS NOT NULL",
			want:  queryir.PropertyExistence{Selector: "r", Property: "sramp:target", Pos: 46},
		},
		{
			name:  "is null",
			where: "r.[sramp:target] IS NULL",
			want:  queryir.Not{Constraint: queryir.PropertyExistence{Selector: "r", Property: "sramp:target", Pos: 46}},
		},
		{
			name:  "like",
			where: "r.[sramp:type] LIKE 'relates%'",
			want: queryir.Comparison{
				Operand:  queryir.PropertyValue{Selector: "r", Property: "sramp:type", Pos: 46},
				Operator: queryir.OpLike,
				Literal:  ir.String("relates%"),
			},
		},
		{
			name:  "cast reference",
			where: "r.[sramp:target] = CAST('abc' AS reference)",
			want: queryir.Comparison{
				Operand:  queryir.PropertyValue{Selector: "r", Property: "sramp:target", Pos: 46},
				Operator: queryir.OpEqual,
				Literal:  ir.Reference("abc"),
			},
		},
		{
			name:  "integer",
			where: "r.[size] >= -3",
			want: queryir.Comparison{
				Operand:  queryir.PropertyValue{Selector: "r", Property: "size", Pos: 46},
				Operator: queryir.OpGreaterThanOrEqual,
				Literal:  ir.Long(-3),
			},
		},
		{
			name:  "functions",
			where: "LOWER(LOCALNAME(r)) <> 'x'",
			want: queryir.Comparison{
				Operand:  queryir.LowerCase{Operand: queryir.NodeLocalName{Selector: "r", Pos: 52}},
				Operator: queryir.OpNotEqual,
				Literal:  ir.String("x"),
			},
		},
		{
			name:  "path",
			where: "ISDESCENDANTNODE(r, '/artifact-a')",
			want:  queryir.DescendantNode{Selector: "r", Path: "/artifact-a", Pos: 46},
		},
		{
			name:  "path without selector",
			where: "ISCHILDNODE([/artifact-a])",
			want:  queryir.ChildNode{Path: "/artifact-a", Pos: 46},
		},
		{
			name:  "precedence",
			where: "NOT NAME(r) = 'a' OR NAME(r) = 'b' AND NAME(r) = 'c'",
			want: queryir.Or{
				Left: queryir.Not{Constraint: queryir.Comparison{
					Operand: queryir.NodeName{Selector: "r", Pos: 50}, Operator: queryir.OpEqual, Literal: ir.String("a"),
				}},
				Right: queryir.And{
					Left: queryir.Comparison{
						Operand: queryir.NodeName{Selector: "r", Pos: 67}, Operator: queryir.OpEqual, Literal: ir.String("b"),
					},
					Right: queryir.Comparison{
						Operand: queryir.NodeName{Selector: "r", Pos: 85}, Operator: queryir.OpEqual, Literal: ir.String("c"),
					},
				},
			},
		},
	}

	const prefix = "SELECT * FROM [sramp:relationship] AS r WHERE " // len 46
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(prefix + tt.where)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Constraint)
		})
	}
}

func TestParse_ProjectionAndOrdering(t *testing.T) {
	q, err := Parse(`select [sramp:name] as n, [jcr:uuid] from [sramp:artifact] order by [sramp:name] desc, name(sramp:artifact)`)
	require.NoError(t, err)

	require.Len(t, q.Columns, 2)
	assert.Equal(t, "n", q.Columns[0].Name)
	assert.Equal(t, "", q.Columns[1].Selector)
	assert.Equal(t, "sramp:artifact", q.Source.(queryir.Selector).Name, "unaliased selector takes the type name")

	require.Len(t, q.Orderings, 2)
	assert.True(t, q.Orderings[0].Descending)
	assert.False(t, q.Orderings[1].Descending)
	assert.Equal(t, "sramp:artifact", q.Orderings[1].Operand.(queryir.NodeName).Selector)
}

func TestParse_LeftOuterJoin(t *testing.T) {
	q, err := Parse(`SELECT * FROM [sramp:artifact] AS a LEFT OUTER JOIN [sramp:relationship] AS r ON ISCHILDNODE(r, a)`)
	require.NoError(t, err)
	assert.Equal(t, queryir.LeftOuterJoin, q.Source.(queryir.Join).Type)
}

func TestParse_NameAsProperty(t *testing.T) {
	q, err := Parse(`SELECT * FROM [nt:unstructured] AS n WHERE n.name = 'x'`)
	require.NoError(t, err)
	assert.Equal(t, "name", q.Constraint.(queryir.Comparison).Operand.(queryir.PropertyValue).Property)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		pos       int
		code      string
	}{
		{"missing select", "FROM [a]", 0, queryir.ErrCodeSyntax},
		{"missing from", "SELECT *", 8, queryir.ErrCodeSyntax},
		{"unterminated bracket", "SELECT * FROM [a", 14, queryir.ErrCodeSyntax},
		{"unterminated string", "SELECT * FROM [a] WHERE [x] = 'oops", 30, queryir.ErrCodeSyntax},
		{"missing on", "SELECT * FROM [a] JOIN [b]", 26, queryir.ErrCodeSyntax},
		{"decimal", "SELECT * FROM [a] WHERE [x] = 1.5", 30, queryir.ErrCodeSyntax},
		{"bad cast", "SELECT * FROM [a] WHERE [x] = CAST('y' AS long)", 35, queryir.ErrCodeSyntax},
		{"relative path", "SELECT * FROM [a] WHERE ISCHILDNODE('rel')", 36, queryir.ErrCodeSyntax},
		{"right join", "SELECT * FROM [a] RIGHT JOIN [b] ON ISSAMENODE(a, b)", 18, queryir.ErrCodeUnsupported},
		{"is null on function", "SELECT * FROM [a] WHERE NAME(a) IS NULL", 24, queryir.ErrCodeSyntax},
		{"bad character", "SELECT * FROM [a] WHERE [x] = ?", 30, queryir.ErrCodeSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.statement)
			require.Error(t, err)

			var qe *queryir.QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.code, qe.Code)
			assert.Equal(t, tt.pos, qe.Pos, qe.Message)
		})
	}
}

func TestParse_QuotedStrings(t *testing.T) {
	q, err := Parse(`SELECT * FROM [a] WHERE [x] = 'it''s' OR [x] = "dq"`)
	require.NoError(t, err)

	or := q.Constraint.(queryir.Or)
	assert.Equal(t, ir.String("it's"), or.Left.(queryir.Comparison).Literal)
	assert.Equal(t, ir.String("dq"), or.Right.(queryir.Comparison).Literal)
}
