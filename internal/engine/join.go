package engine

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
)

// evalSource produces the tuples of a source in deterministic order: left
// tuples in their order, and for each the matching right tuples in theirs.
func (e *Engine) evalSource(ctx context.Context, src queryir.Source, candidates map[string][]*ir.NodeRecord) ([]tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	switch s := src.(type) {
	case queryir.Selector:
		nodes := candidates[s.Name]
		out := make([]tuple, len(nodes))
		for i, n := range nodes {
			out[i] = tuple{s.Name: n}
		}
		return out, nil

	case queryir.Join:
		left, err := e.evalSource(ctx, s.Left, candidates)
		if err != nil {
			return nil, err
		}
		right, err := e.evalSource(ctx, s.Right, candidates)
		if err != nil {
			return nil, err
		}
		rightNames := selectorNames(s.Right)

		var out []tuple
		if eq, ok := s.Condition.(queryir.EquiJoin); ok {
			out = e.equiJoin(left, right, rightNames, eq, s.Type)
		} else {
			out = e.nestedLoopJoin(left, right, rightNames, s.Condition, s.Type)
		}
		e.logger.Debug("join evaluated",
			"type", s.Type.String(),
			"left", len(left),
			"right", len(right),
			"tuples", len(out))
		return out, nil
	}

	return nil, &ExecutionError{Code: ErrCodeUnsupported, Message: "unsupported source"}
}

// equiJoin matches tuples whose join properties share at least one value.
// The right side is indexed by value so each left value is one lookup; a
// multi-valued property on the left fans out into one tuple per matched
// right tuple, in right-side order.
func (e *Engine) equiJoin(left, right []tuple, rightNames map[string]bool, cond queryir.EquiJoin, jt queryir.JoinType) []tuple {
	leftSel, leftProp := cond.Selector1, cond.Property1
	rightSel, rightProp := cond.Selector2, cond.Property2
	if rightNames[leftSel] {
		leftSel, leftProp, rightSel, rightProp = rightSel, rightProp, leftSel, leftProp
	}

	index := make(map[string][]int)
	for i, rt := range right {
		vals, _ := e.propertyValues(rt[rightSel], rightProp)
		for _, v := range vals {
			key := v.String()
			// A multi-valued right property may repeat a value.
			if ids := index[key]; len(ids) > 0 && ids[len(ids)-1] == i {
				continue
			}
			index[key] = append(index[key], i)
		}
	}

	var out []tuple
	for _, lt := range left {
		vals, _ := e.propertyValues(lt[leftSel], leftProp)
		seen := make(map[int]bool)
		var matched []int
		for _, v := range vals {
			for _, i := range index[v.String()] {
				if !seen[i] {
					seen[i] = true
					matched = append(matched, i)
				}
			}
		}
		slices.Sort(matched)

		for _, i := range matched {
			out = append(out, merge(lt, right[i]))
		}
		if len(matched) == 0 && jt == queryir.LeftOuterJoin {
			out = append(out, withNulls(lt, rightNames))
		}
	}
	return out
}

func (e *Engine) nestedLoopJoin(left, right []tuple, rightNames map[string]bool, cond queryir.JoinCondition, jt queryir.JoinType) []tuple {
	var out []tuple
	for _, lt := range left {
		matched := false
		for _, rt := range right {
			combined := merge(lt, rt)
			if joinSatisfied(cond, combined) {
				out = append(out, combined)
				matched = true
			}
		}
		if !matched && jt == queryir.LeftOuterJoin {
			out = append(out, withNulls(lt, rightNames))
		}
	}
	return out
}

// joinSatisfied evaluates a structural join condition over a combined tuple.
func joinSatisfied(cond queryir.JoinCondition, t tuple) bool {
	switch c := cond.(type) {
	case queryir.ChildNodeJoin:
		child, parent := t[c.Child], t[c.Parent]
		return child != nil && parent != nil && child.ParentID == parent.ID

	case queryir.DescendantNodeJoin:
		desc, anc := t[c.Descendant], t[c.Ancestor]
		return desc != nil && anc != nil && isDescendantPath(desc.Path, anc.Path)

	case queryir.SameNodeJoin:
		a, b := t[c.Selector1], t[c.Selector2]
		return a != nil && b != nil && a.ID == b.ID
	}
	return false
}

// isDescendantPath reports whether p lies strictly below ancestor.
func isDescendantPath(p, ancestor string) bool {
	if ancestor == ir.RootPath {
		return p != ir.RootPath && strings.HasPrefix(p, ir.RootPath)
	}
	return strings.HasPrefix(p, ancestor+"/")
}

func merge(a, b tuple) tuple {
	out := make(tuple, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

func withNulls(t tuple, names map[string]bool) tuple {
	out := make(tuple, len(t)+len(names))
	maps.Copy(out, t)
	for name := range names {
		out[name] = nil
	}
	return out
}

func selectorNames(src queryir.Source) map[string]bool {
	out := make(map[string]bool)
	for _, sel := range queryir.Selectors(src) {
		out[sel.Name] = true
	}
	return out
}
