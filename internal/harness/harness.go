package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/jcr"
	"github.com/roach88/refjoin/internal/queryir"
	"github.com/roach88/refjoin/internal/testutil"
)

// Harness is the scenario execution engine.
// It drives a repository through the same API an application uses, with
// deterministic node identifiers.
type Harness struct {
	repo    *jcr.Repository
	logger  *slog.Logger
	readers map[string]*jcr.Session
}

// queryRun is one execution of a query step.
type queryRun struct {
	outcome  QueryOutcome
	err      error
	nodesErr error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory repository for isolation.
//
// Execution flow:
// 1. Start a repository with a sequential identifier generator
// 2. Register namespaces and node type schema files
// 3. Execute writer sessions, each saved once and logged out
// 4. Execute queries in fresh reader sessions and check expectations
// 5. Evaluate assertions
//
// An error is returned when the scenario cannot be set up; failed
// expectations and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	repo, err := jcr.New(ctx, scenarioConfig(scenario),
		jcr.WithLogger(logger),
		jcr.WithIdentifierGenerator(testutil.NewSequentialGenerator("node")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start repository: %w", err)
	}
	defer repo.Close()

	h := &Harness{
		repo:    repo,
		logger:  logger,
		readers: make(map[string]*jcr.Session),
	}
	defer h.logoutReaders()

	if err := h.registerSchema(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}
	for i, step := range scenario.Sessions {
		if err := h.executeSession(ctx, step); err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
	}

	result := NewResult()
	for _, q := range scenario.Queries {
		run, err := h.executeQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		result.Queries = append(result.Queries, run.outcome)
		msgs, err := h.checkExpect(ctx, q, run)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		for _, msg := range msgs {
			result.AddError(msg)
		}
	}

	actx := &AssertionContext{
		Ctx: ctx,
		Execute: func(ctx context.Context, name string) (*QueryOutcome, error) {
			for _, q := range scenario.Queries {
				if q.Name == name {
					run, err := h.executeQuery(ctx, q)
					if err != nil {
						return nil, err
					}
					return &run.outcome, nil
				}
			}
			return nil, fmt.Errorf("unknown query %q", name)
		},
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// scenarioConfig builds an in-memory configuration with every workspace the
// scenario names.
func scenarioConfig(s *Scenario) *jcr.Configuration {
	var predefined []string
	add := func(ws string) {
		if ws != "" && ws != jcr.DefaultWorkspace && !slices.Contains(predefined, ws) {
			predefined = append(predefined, ws)
		}
	}
	for _, sess := range s.Sessions {
		add(sess.Workspace)
	}
	for _, q := range s.Queries {
		add(q.Workspace)
	}
	return &jcr.Configuration{
		Name:    s.Name,
		Storage: jcr.StorageConfig{Type: jcr.StorageMemory},
		Workspaces: jcr.WorkspaceConfig{
			Default:    jcr.DefaultWorkspace,
			Predefined: predefined,
		},
	}
}

// registerSchema registers namespaces (sorted by prefix) and then the schema
// files in scenario order.
func (h *Harness) registerSchema(ctx context.Context, s *Scenario) error {
	session, err := h.repo.Login(ctx, "")
	if err != nil {
		return err
	}
	defer session.Logout()

	ws := session.Workspace()
	for _, prefix := range slices.Sorted(maps.Keys(s.Namespaces)) {
		if err := ws.NamespaceRegistry().RegisterNamespace(ctx, prefix, s.Namespaces[prefix]); err != nil {
			return err
		}
	}
	for _, p := range s.Schema {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		err = ws.NodeTypeManager().RegisterNodeTypes(ctx, f, true)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	h.logger.Info("schema registered",
		"namespaces", len(s.Namespaces),
		"files", len(s.Schema),
	)
	return nil
}

// executeSession adds the step's nodes in one session and saves once.
func (h *Harness) executeSession(ctx context.Context, step SessionStep) error {
	session, err := h.repo.Login(ctx, step.Workspace)
	if err != nil {
		return err
	}
	defer session.Logout()

	for _, n := range step.Nodes {
		if err := h.addNode(ctx, session, n); err != nil {
			return fmt.Errorf("node %s: %w", n.Path, err)
		}
	}
	if err := session.Save(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	h.logger.Info("session saved",
		"workspace", session.Workspace().Name(),
		"nodes", len(step.Nodes),
	)
	return nil
}

func (h *Harness) addNode(ctx context.Context, session *jcr.Session, step NodeStep) error {
	parent, err := session.Node(ctx, path.Dir(step.Path))
	if err != nil {
		return err
	}
	node, err := parent.AddNode(ctx, path.Base(step.Path), step.Type)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(step.Properties)) {
		values, err := convertValues(ctx, session, step.Properties[name])
		if err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		if err := node.SetProperty(name, values...); err != nil {
			return err
		}
	}
	return nil
}

// reader returns the query session for a workspace, logging in on first use.
func (h *Harness) reader(ctx context.Context, workspace string) (*jcr.Session, error) {
	if s, ok := h.readers[workspace]; ok {
		return s, nil
	}
	s, err := h.repo.Login(ctx, workspace)
	if err != nil {
		return nil, err
	}
	h.readers[workspace] = s
	return s, nil
}

func (h *Harness) logoutReaders() {
	for _, s := range h.readers {
		s.Logout()
	}
}

// executeQuery runs one query step. A failing query is recorded in the
// returned run; the error return is reserved for harness failures.
func (h *Harness) executeQuery(ctx context.Context, step QueryStep) (queryRun, error) {
	run := queryRun{outcome: QueryOutcome{
		Name:    step.Name,
		Columns: []string{},
		Rows:    []map[string][]string{},
	}}

	session, err := h.reader(ctx, step.Workspace)
	if err != nil {
		return run, err
	}

	q, err := session.Workspace().QueryManager().CreateQuery(step.Statement, jcr.JCRSQL2)
	if err != nil {
		run.err = err
		run.outcome.Error = errorCode(err)
		return run, nil
	}
	res, err := q.Execute(ctx)
	if err != nil {
		run.err = err
		run.outcome.Error = errorCode(err)
		return run, nil
	}

	run.outcome.Columns = res.Columns()
	for _, row := range res.Rows() {
		values := make(map[string][]string, len(run.outcome.Columns))
		for _, c := range run.outcome.Columns {
			if row.Has(c) {
				values[c] = ir.Strings(row.Values(c))
			}
		}
		run.outcome.Rows = append(run.outcome.Rows, values)
	}

	nodes, err := res.Nodes()
	if err != nil {
		run.nodesErr = err
	} else {
		run.outcome.NodePaths = make([]string, len(nodes))
		for i, n := range nodes {
			run.outcome.NodePaths[i] = n.Path()
		}
	}

	h.logger.Info("query executed",
		"query", step.Name,
		"rows", len(run.outcome.Rows),
	)
	return run, nil
}

// checkExpect compares a query run with its expect clause and returns one
// message per mismatch.
func (h *Harness) checkExpect(ctx context.Context, step QueryStep, run queryRun) ([]string, error) {
	exp := step.Expect
	if exp == nil {
		if run.err != nil {
			return []string{fmt.Sprintf("query %s: unexpected error: %v", step.Name, run.err)}, nil
		}
		return nil, nil
	}

	if exp.Error != "" {
		switch {
		case run.err == nil:
			return []string{fmt.Sprintf("query %s: expected error %s, got %d rows", step.Name, exp.Error, len(run.outcome.Rows))}, nil
		case !matchesError(run.err, exp.Error):
			return []string{fmt.Sprintf("query %s: expected error %s, got %v", step.Name, exp.Error, run.err)}, nil
		}
		return nil, nil
	}
	if run.err != nil {
		return []string{fmt.Sprintf("query %s: unexpected error: %v", step.Name, run.err)}, nil
	}

	var msgs []string
	out := run.outcome
	if exp.Rows != nil && *exp.Rows != len(out.Rows) {
		msgs = append(msgs, fmt.Sprintf("query %s: expected %d rows, got %d", step.Name, *exp.Rows, len(out.Rows)))
	}
	if exp.Nodes != nil || exp.NodePaths != nil {
		if run.nodesErr != nil {
			msgs = append(msgs, fmt.Sprintf("query %s: nodes unavailable: %v", step.Name, run.nodesErr))
		} else {
			if exp.Nodes != nil && *exp.Nodes != len(out.NodePaths) {
				msgs = append(msgs, fmt.Sprintf("query %s: expected %d nodes, got %d", step.Name, *exp.Nodes, len(out.NodePaths)))
			}
			if exp.NodePaths != nil && !slices.Equal(exp.NodePaths, out.NodePaths) {
				msgs = append(msgs, fmt.Sprintf("query %s: expected node paths %v, got %v", step.Name, exp.NodePaths, out.NodePaths))
			}
		}
	}

	session, err := h.reader(ctx, step.Workspace)
	if err != nil {
		return nil, err
	}
	for _, column := range slices.Sorted(maps.Keys(exp.Values)) {
		if !slices.Contains(out.Columns, column) {
			msgs = append(msgs, fmt.Sprintf("query %s: no column %q in %v", step.Name, column, out.Columns))
			continue
		}
		want, err := resolveExpected(ctx, session, exp.Values[column])
		if err != nil {
			return nil, err
		}
		got := valueSet(out.Values(column))
		if !slices.Equal(want, got) {
			msgs = append(msgs, fmt.Sprintf("query %s: column %s: expected values %v, got %v", step.Name, column, want, got))
		}
	}
	return msgs, nil
}

// resolveExpected replaces "ref:/path" entries with node identifiers and
// returns the sorted set.
func resolveExpected(ctx context.Context, session *jcr.Session, values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		target, ok := strings.CutPrefix(v, refPrefix)
		if !ok {
			out[i] = v
			continue
		}
		n, err := session.Node(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("expected value %q: %w", v, err)
		}
		out[i] = n.Identifier()
	}
	return valueSet(out), nil
}

func valueSet(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// errorCode reports the most specific code of a query failure.
func errorCode(err error) string {
	var qe *queryir.QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	var re *jcr.RepositoryError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "ERROR"
}

func matchesError(err error, code string) bool {
	return queryir.IsQueryError(err, code) || jcr.IsCode(err, jcr.ErrorCode(code))
}

// convertValues converts a YAML property value, scalar or list, to
// repository values.
func convertValues(ctx context.Context, session *jcr.Session, raw any) ([]ir.Value, error) {
	list, ok := raw.([]any)
	if !ok {
		v, err := convertValue(ctx, session, raw)
		if err != nil {
			return nil, err
		}
		return []ir.Value{v}, nil
	}
	out := make([]ir.Value, len(list))
	for i, elem := range list {
		v, err := convertValue(ctx, session, elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// convertValue converts a YAML-parsed scalar. "ref:/path" strings become
// references to the node at that path, pending or saved.
func convertValue(ctx context.Context, session *jcr.Session, val any) (ir.Value, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are not allowed")
	}

	switch v := val.(type) {
	case string:
		target, ok := strings.CutPrefix(v, refPrefix)
		if !ok {
			return ir.String(v), nil
		}
		n, err := session.Node(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", v, err)
		}
		return session.ValueFactory().Reference(n)
	case int:
		return ir.Long(int64(v)), nil
	case int64:
		return ir.Long(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.Long(int64(v)), nil
		}
		return nil, fmt.Errorf("floating point values are not supported: %v", v)
	case bool:
		return ir.Boolean(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
