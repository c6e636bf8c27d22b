package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/queryir"
	"github.com/roach88/refjoin/internal/querysql"
	"github.com/roach88/refjoin/internal/store"
)

// TypeResolver is the view of the node type registry the engine needs.
// *schema.Registry satisfies it.
type TypeResolver interface {
	// Subtypes returns the primary types whose nodes a selector of name matches.
	Subtypes(name string) []string
	// Properties returns the named property definitions effective on a type.
	Properties(typeName string) []ir.PropertyDefinition
	// IsReferenceable reports whether nodes of the type expose jcr:uuid.
	IsReferenceable(typeName string) bool
}

// Engine executes queries against one store.
//
// Thread-safety: Engine holds no per-query state and is safe for concurrent
// use; the store serializes access to SQLite.
type Engine struct {
	store  *store.Store
	types  TypeResolver
	logger *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used for execution diagnostics.
// Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine reading from s and resolving types through types.
func New(s *store.Store, types TypeResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  s,
		types:  types,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one query execution.
type Result struct {
	// Columns in projection order, wildcards expanded.
	Columns []ColumnRef
	// Selectors in source order.
	Selectors []string
	// Rows in result order.
	Rows []Row
}

// ColumnRef ties a result column to the selector property it projects.
type ColumnRef struct {
	Name     string
	Selector string
	Property string
}

// Row is one result row.
type Row struct {
	// Nodes maps selector name to node. A selector on the optional side of
	// an unmatched LEFT OUTER JOIN maps to nil.
	Nodes map[string]*ir.NodeRecord
	// Values maps column name to the property's values. A column whose
	// property is absent on the node has no entry; a present property with
	// no values maps to an empty slice.
	Values map[string][]ir.Value
}

// tuple binds selector names to nodes during join evaluation.
type tuple map[string]*ir.NodeRecord

// Execute runs a validated query against the committed content of workspace.
//
// Zero matches is an empty result, not an error.
func (e *Engine) Execute(ctx context.Context, workspace string, q *queryir.Query) (*Result, error) {
	candidates, err := e.loadCandidates(ctx, workspace, q)
	if err != nil {
		return nil, err
	}

	tuples, err := e.evalSource(ctx, q.Source, candidates)
	if err != nil {
		return nil, err
	}

	if q.Constraint != nil {
		kept := tuples[:0]
		for _, t := range tuples {
			if e.satisfies(q.Constraint, t) {
				kept = append(kept, t)
			}
		}
		tuples = kept
	}

	if len(q.Orderings) > 0 {
		e.order(tuples, q.Orderings)
	}

	res := e.project(q, tuples)
	e.logger.Debug("query executed",
		"workspace", workspace,
		"selectors", len(res.Selectors),
		"rows", len(res.Rows))
	return res, nil
}

// loadCandidates selects and loads the candidate nodes of every selector.
func (e *Engine) loadCandidates(ctx context.Context, workspace string, q *queryir.Query) (map[string][]*ir.NodeRecord, error) {
	optional := optionalSelectors(q.Source, false, make(map[string]bool))
	compiler := querysql.NewSQLCompiler(workspace, e.types.IsReferenceable)
	out := make(map[string][]*ir.NodeRecord)

	for _, sel := range queryir.Selectors(q.Source) {
		var filters []queryir.Constraint
		if !optional[sel.Name] {
			filters = querysql.Pushdown(q.Constraint, sel.Name)
		}

		sqlStr, params, err := compiler.Compile(sel, e.types.Subtypes(sel.NodeType), filters)
		if err != nil {
			return nil, &ExecutionError{Code: ErrCodeUnsupported, Message: "compile selector", Selector: sel.Name, Err: err}
		}
		ids, err := e.store.SelectNodeIDs(ctx, sqlStr, params...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, storeError(sel.Name, "select candidates", err)
		}
		nodes, err := e.store.ReadNodes(ctx, workspace, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, storeError(sel.Name, "load candidates", err)
		}

		e.logger.Debug("selector candidates",
			"selector", sel.Name,
			"node_type", sel.NodeType,
			"pushed_filters", len(filters),
			"count", len(nodes))
		out[sel.Name] = nodes
	}
	return out, nil
}

// optionalSelectors marks selectors on the right side of a LEFT OUTER JOIN.
// Constraints are never pushed down onto them.
func optionalSelectors(src queryir.Source, optional bool, out map[string]bool) map[string]bool {
	switch s := src.(type) {
	case queryir.Selector:
		if optional {
			out[s.Name] = true
		}
	case queryir.Join:
		optionalSelectors(s.Left, optional, out)
		optionalSelectors(s.Right, optional || s.Type == queryir.LeftOuterJoin, out)
	}
	return out
}
