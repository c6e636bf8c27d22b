package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

// SQLCompiler compiles one query selector, plus the constraints pushed down
// to it, into parameterized SQL for SQLite returning candidate node ids.
//
// Every compiled filter keeps exactly the nodes the engine's evaluation of
// the same constraint keeps, so a pushed NOT never drops a row.
//
// CRITICAL: ALL queries include ORDER BY n.seq, n.id for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	Workspace string

	// Referenceable reports whether nodes of a primary type expose jcr:uuid.
	// A nil func treats no type as referenceable.
	Referenceable func(typeName string) bool
}

// NewSQLCompiler creates a compiler scoped to one workspace.
func NewSQLCompiler(workspace string, referenceable func(typeName string) bool) *SQLCompiler {
	return &SQLCompiler{Workspace: workspace, Referenceable: referenceable}
}

// selectorTypes holds the primary types one compiled selector may match.
type selectorTypes struct {
	referenceable []string
}

// Compile builds the candidate query for sel.
//
// primaryTypes lists every primary node type satisfying the selector's type
// (the type itself and its subtypes); an empty list selects nothing.
// filters must come from Pushdown for the same selector.
//
// MANDATORY: Every query includes ORDER BY with deterministic tiebreaker.
func (c *SQLCompiler) Compile(sel queryir.Selector, primaryTypes []string, filters []queryir.Constraint) (string, []any, error) {
	if len(primaryTypes) == 0 {
		return "SELECT n.id FROM nodes n WHERE 0 ORDER BY n.seq ASC, n.id COLLATE BINARY ASC", nil, nil
	}

	where := []string{"n.workspace = ?", "n.primary_type IN (" + placeholders(len(primaryTypes)) + ")"}
	params := []any{c.Workspace}
	for _, t := range primaryTypes {
		params = append(params, t)
	}

	var types selectorTypes
	for _, t := range primaryTypes {
		if c.Referenceable != nil && c.Referenceable(t) {
			types.referenceable = append(types.referenceable, t)
		}
	}

	for _, f := range filters {
		sql, fp, err := c.compileConstraint(f, sel.Name, types)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter on %s: %w", sel.Name, err)
		}
		where = append(where, sql)
		params = append(params, fp...)
	}

	sql := "SELECT n.id FROM nodes n WHERE " + strings.Join(where, " AND ") +
		" ORDER BY n.seq ASC, n.id COLLATE BINARY ASC"
	return sql, params, nil
}

// compileConstraint compiles a pushable constraint to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compileConstraint(con queryir.Constraint, selector string, types selectorTypes) (string, []any, error) {
	switch con := con.(type) {
	case queryir.And:
		return c.compileBinary(con.Left, con.Right, "AND", selector, types)
	case queryir.Or:
		return c.compileBinary(con.Left, con.Right, "OR", selector, types)
	case queryir.Not:
		sql, params, err := c.compileConstraint(con.Constraint, selector, types)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case queryir.Comparison:
		return c.compileComparison(con, types)
	case queryir.PropertyExistence:
		return compileExistence(con.Property, types)
	case queryir.ChildNode:
		return "n.parent_id = (SELECT p.id FROM nodes p WHERE p.workspace = ? AND p.path = ?)",
			[]any{c.Workspace, con.Path}, nil
	case queryir.DescendantNode:
		prefix := strings.TrimSuffix(con.Path, "/") + "/"
		return "(substr(n.path, 1, length(?)) = ? AND n.path <> ?)", []any{prefix, prefix, con.Path}, nil
	case queryir.SameNode:
		return "n.path = ?", []any{con.Path}, nil
	}
	return "", nil, fmt.Errorf("constraint %T cannot be compiled to SQL", con)
}

func (c *SQLCompiler) compileBinary(left, right queryir.Constraint, op, selector string, types selectorTypes) (string, []any, error) {
	ls, lp, err := c.compileConstraint(left, selector, types)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := c.compileConstraint(right, selector, types)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " " + op + " " + rs + ")", append(lp, rp...), nil
}

// compileComparison compiles operand = literal. Stored values are TEXT, so
// only equality against a literal that the engine also compares as text
// is accepted (see IsTextLiteral).
func (c *SQLCompiler) compileComparison(cmp queryir.Comparison, types selectorTypes) (string, []any, error) {
	if cmp.Operator != queryir.OpEqual {
		return "", nil, fmt.Errorf("operator %s cannot be compiled to SQL", cmp.Operator)
	}
	if !IsTextLiteral(cmp.Literal) {
		return "", nil, fmt.Errorf("literal %q compares numerically", cmp.Literal.String())
	}
	value := param(cmp.Literal)

	switch op := cmp.Operand.(type) {
	case queryir.NodeName:
		return "n.name = ?", []any{value}, nil
	case queryir.PropertyValue:
		switch op.Property {
		case ir.PropUUID:
			if len(types.referenceable) == 0 {
				return "0", nil, nil
			}
			return "(n.id = ? AND " + types.referenceableSQL() + ")",
				append([]any{value}, types.referenceableParams()...), nil
		case ir.PropPrimaryType:
			return "n.primary_type = ?", []any{value}, nil
		}
		// Any value of a multi-valued property may match.
		return "EXISTS (SELECT 1 FROM property_values v WHERE v.node_id = n.id AND v.name = ? AND v.value = ?)",
			[]any{op.Property, value}, nil
	}
	return "", nil, fmt.Errorf("operand %T cannot be compiled to SQL", cmp.Operand)
}

func compileExistence(property string, types selectorTypes) (string, []any, error) {
	switch property {
	case ir.PropPrimaryType:
		return "1 = 1", nil, nil
	case ir.PropUUID:
		if len(types.referenceable) == 0 {
			return "0", nil, nil
		}
		return types.referenceableSQL(), types.referenceableParams(), nil
	}
	return "EXISTS (SELECT 1 FROM properties p WHERE p.node_id = n.id AND p.name = ?)",
		[]any{property}, nil
}

func (t selectorTypes) referenceableSQL() string {
	return "n.primary_type IN (" + placeholders(len(t.referenceable)) + ")"
}

func (t selectorTypes) referenceableParams() []any {
	params := make([]any, len(t.referenceable))
	for i, name := range t.referenceable {
		params[i] = name
	}
	return params
}

// IsTextLiteral reports whether the engine compares v with stored values by
// their string form. Literals that parse as integers compare numerically
// against longs ('07' equals 7), which TEXT equality cannot express.
func IsTextLiteral(v ir.Value) bool {
	if v.Type() == ir.TypeLong {
		return false
	}
	_, err := strconv.ParseInt(v.String(), 10, 64)
	return err != nil
}

// param converts a literal to its stored TEXT form.
func param(v ir.Value) any {
	return v.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
