package jcr

import (
	"context"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/roach88/refjoin/internal/engine"
	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
	"github.com/roach88/refjoin/internal/sql2"
)

// QueryManager creates queries for a session.
type QueryManager struct {
	session *Session
}

// SupportedQueryLanguages returns the accepted language names.
func (qm *QueryManager) SupportedQueryLanguages() []string {
	return []string{sql2.Language}
}

// CreateQuery parses and validates a statement. Syntax errors and
// references to unknown node types, properties or selectors fail here with
// INVALID_QUERY wrapping the *queryir.QueryError.
func (qm *QueryManager) CreateQuery(statement, language string) (*Query, error) {
	s := qm.session
	if err := s.check(); err != nil {
		return nil, err
	}
	if !s.repo.cfg.QueryEnabled() {
		return nil, newError(ErrCodeRepository, "", "queries are disabled for repository %q", s.repo.cfg.Name)
	}
	if language != sql2.Language {
		return nil, newError(ErrCodeInvalidQuery, "", "unsupported query language %q", language)
	}

	q, err := sql2.Parse(statement)
	if err != nil {
		return nil, wrapError(ErrCodeInvalidQuery, "", err, "parse query")
	}
	if err := queryir.Validate(q, s.repo.registry); err != nil {
		return nil, wrapError(ErrCodeInvalidQuery, "", err, "validate query")
	}
	return &Query{session: s, language: language, ir: q}, nil
}

// Query is a compiled, validated query. It can be executed repeatedly.
type Query struct {
	session  *Session
	language string
	ir       *queryir.Query
}

// Statement returns the query text.
func (q *Query) Statement() string { return q.ir.Statement }

// Language returns the query language.
func (q *Query) Language() string { return q.language }

// Execute runs the query against the saved content of the session's
// workspace. Unsaved changes of any session are not visible.
func (q *Query) Execute(ctx context.Context) (*QueryResult, error) {
	s := q.session
	if err := s.check(); err != nil {
		return nil, err
	}
	res, err := s.repo.engine.Execute(ctx, s.workspace, q.ir)
	switch {
	case engine.IsStoreError(err):
		return nil, wrapError(ErrCodeRepository, "", err, "read workspace %q", s.workspace)
	case engine.IsCancelled(err):
		return nil, wrapError(ErrCodeRepository, "", err, "query cancelled")
	case err != nil:
		return nil, wrapError(ErrCodeRepository, "", err, "execute query")
	}
	return &QueryResult{session: s, res: res}, nil
}

// QueryResult holds the rows of one execution.
type QueryResult struct {
	session *Session
	res     *engine.Result
}

// Columns returns the column names in projection order.
func (r *QueryResult) Columns() []string {
	out := make([]string, len(r.res.Columns))
	for i, c := range r.res.Columns {
		out[i] = c.Name
	}
	return out
}

// SelectorNames returns the selector names in source order.
func (r *QueryResult) SelectorNames() []string {
	return slices.Clone(r.res.Selectors)
}

// Size returns the number of rows.
func (r *QueryResult) Size() int { return len(r.res.Rows) }

// Rows returns the rows in result order.
func (r *QueryResult) Rows() []*Row {
	out := make([]*Row, len(r.res.Rows))
	for i := range r.res.Rows {
		out[i] = &Row{result: r, row: r.res.Rows[i]}
	}
	return out
}

// Nodes returns one node per row for the single selector the result
// addresses: the only selector of the query, or the only selector its
// columns project. Rows where that selector is unmatched are skipped.
func (r *QueryResult) Nodes() ([]*Node, error) {
	if err := r.session.check(); err != nil {
		return nil, err
	}
	sel, err := r.nodeSelector()
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, row := range r.res.Rows {
		if rec := row.Nodes[sel]; rec != nil {
			out = append(out, r.session.adopt(rec.Clone()))
		}
	}
	return out, nil
}

func (r *QueryResult) nodeSelector() (string, error) {
	if len(r.res.Selectors) == 1 {
		return r.res.Selectors[0], nil
	}
	var projected []string
	for _, c := range r.res.Columns {
		if !slices.Contains(projected, c.Selector) {
			projected = append(projected, c.Selector)
		}
	}
	if len(projected) != 1 {
		return "", newError(ErrCodeRepository, "",
			"result spans selectors %s; use Rows to read nodes", strings.Join(r.res.Selectors, ", "))
	}
	return projected[0], nil
}

// String renders the result as a table, one line per row.
func (r *QueryResult) String() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(r.Columns()...)
	for _, row := range r.Rows() {
		cells := make([]string, len(r.res.Columns))
		for i, c := range r.res.Columns {
			cells[i] = row.cell(c)
		}
		t.Row(cells...)
	}
	return t.String()
}

// Row is one result row.
type Row struct {
	result *QueryResult
	row    engine.Row
}

func (r *Row) column(name string) (engine.ColumnRef, bool) {
	for _, c := range r.result.res.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return engine.ColumnRef{}, false
}

// Has reports whether the column's property is present on the row's node.
// A present multi-valued property with no values still has the column.
func (r *Row) Has(column string) bool {
	_, ok := r.row.Values[column]
	return ok
}

// Values returns the column's values in assignment order, or nil when the
// property is absent.
func (r *Row) Values(column string) []ir.Value {
	vals, ok := r.row.Values[column]
	if !ok {
		return nil
	}
	return slices.Clone(vals)
}

// Value returns the column's single value. It returns nil without error
// when the property is absent, ITEM_NOT_FOUND for an unknown column and
// VALUE_FORMAT when the property is multi-valued.
func (r *Row) Value(column string) (ir.Value, error) {
	c, ok := r.column(column)
	if !ok {
		return nil, newError(ErrCodeItemNotFound, "", "no column %q in result", column)
	}
	vals, ok := r.row.Values[column]
	if !ok {
		return nil, nil
	}
	if r.multiple(c) {
		return nil, newError(ErrCodeValueFormat, "", "column %q holds a multi-valued property", column)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

// Node returns the node bound to a selector, or nil when the selector is on
// the unmatched side of an outer join.
func (r *Row) Node(selector string) (*Node, error) {
	rec, ok := r.row.Nodes[selector]
	if !ok {
		return nil, newError(ErrCodeItemNotFound, "", "no selector %q in result", selector)
	}
	if rec == nil {
		return nil, nil
	}
	if err := r.result.session.check(); err != nil {
		return nil, err
	}
	return r.result.session.adopt(rec.Clone()), nil
}

func (r *Row) multiple(c engine.ColumnRef) bool {
	rec := r.row.Nodes[c.Selector]
	if rec == nil {
		return false
	}
	return rec.Properties[c.Property].Multiple
}

func (r *Row) cell(c engine.ColumnRef) string {
	vals, ok := r.row.Values[c.Name]
	if !ok {
		return ""
	}
	if !r.multiple(c) && len(vals) == 1 {
		return vals[0].String()
	}
	return "[" + strings.Join(ir.Strings(vals), ", ") + "]"
}

// JCRSQL2 is the only supported query language.
const JCRSQL2 = sql2.Language
