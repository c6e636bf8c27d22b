package engine

import (
	"slices"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

// order sorts tuples by the ORDER BY terms. Each operand sorts by its first
// value; tuples without a value sort first in ascending order. Ties keep
// join order.
func (e *Engine) order(tuples []tuple, orderings []queryir.Ordering) {
	slices.SortStableFunc(tuples, func(a, b tuple) int {
		for _, o := range orderings {
			c := compareFirst(e.operandValues(o.Operand, a), e.operandValues(o.Operand, b))
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareFirst(a, b []ir.Value) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return -1
	case len(b) == 0:
		return 1
	}
	return ir.Compare(a[0], b[0])
}

// project expands wildcard columns and builds the result rows.
func (e *Engine) project(q *queryir.Query, tuples []tuple) *Result {
	sels := queryir.Selectors(q.Source)
	qualified := len(sels) > 1

	res := &Result{
		Selectors: make([]string, len(sels)),
		Rows:      make([]Row, 0, len(tuples)),
	}
	for i, s := range sels {
		res.Selectors[i] = s.Name
	}

	for _, col := range q.Columns {
		if !col.IsWildcard() {
			res.Columns = append(res.Columns, ColumnRef{Name: col.Name, Selector: col.Selector, Property: col.Property})
			continue
		}
		for _, s := range sels {
			if col.Selector != "" && col.Selector != s.Name {
				continue
			}
			for _, pd := range e.types.Properties(s.NodeType) {
				res.Columns = append(res.Columns, ColumnRef{
					Name:     queryir.ColumnName(s.Name, pd.Name, qualified),
					Selector: s.Name,
					Property: pd.Name,
				})
			}
		}
	}

	for _, t := range tuples {
		row := Row{
			Nodes:  make(map[string]*ir.NodeRecord, len(t)),
			Values: make(map[string][]ir.Value, len(res.Columns)),
		}
		for name, n := range t {
			row.Nodes[name] = n
		}
		for _, col := range res.Columns {
			if vals, ok := e.propertyValues(t[col.Selector], col.Property); ok {
				row.Values[col.Name] = vals
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}
