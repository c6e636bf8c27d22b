package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/refjoin/internal/ir"
)

// toCanonicalMap converts an outcome to a map[string]any for canonical JSON
// serialization. This is required because ir.MarshalCanonical only handles
// IR types and primitives.
func (o *QueryOutcome) toCanonicalMap() map[string]any {
	rows := make([]any, len(o.Rows))
	for i, row := range o.Rows {
		m := make(map[string]any, len(row))
		for column, values := range row {
			m[column] = values
		}
		rows[i] = m
	}

	out := map[string]any{
		"name":    o.Name,
		"columns": o.Columns,
		"rows":    rows,
	}
	if len(o.NodePaths) > 0 {
		out["node_paths"] = o.NodePaths
	}
	if o.Error != "" {
		out["error"] = o.Error
	}
	return out
}

func canonicalOutcome(o *QueryOutcome) ([]byte, error) {
	return ir.MarshalCanonical(o.toCanonicalMap())
}

// Snapshot serializes the query outcomes of a scenario run as canonical
// JSON. Identical runs produce identical bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	queries := make([]any, len(result.Queries))
	for i := range result.Queries {
		queries[i] = result.Queries[i].toCanonicalMap()
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"queries":  queries,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its query outcomes against
// a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcomes don't match the golden
// file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
