package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a schema file and a scenario referencing it by a
// relative path, and returns the scenario path.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schema"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema", "items.cue"), []byte(itemSchema), 0644))

	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
schema:
  - schema/items.cue
namespaces:
  ex: "http://example.com/ns"
sessions:
  - nodes:
      - path: /one
        type: ex:item
        properties:
          ex:title: One
          ex:links: [ref:/one]
queries:
  - name: titles
    statement: SELECT i.[ex:title] FROM [ex:item] AS i
    expect:
      rows: 1
      values:
        ex:title: [One]
assertions:
  - type: repeatable
    query: titles
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "schema", "items.cue")}, scenario.Schema)
	assert.Equal(t, map[string]string{"ex": "http://example.com/ns"}, scenario.Namespaces)
	require.Len(t, scenario.Sessions, 1)
	require.Len(t, scenario.Sessions[0].Nodes, 1)
	assert.Equal(t, "/one", scenario.Sessions[0].Nodes[0].Path)
	assert.Equal(t, "One", scenario.Sessions[0].Nodes[0].Properties["ex:title"])
	assert.Equal(t, []any{"ref:/one"}, scenario.Sessions[0].Nodes[0].Properties["ex:links"])
	require.Len(t, scenario.Queries, 1)
	require.NotNil(t, scenario.Queries[0].Expect)
	assert.Equal(t, 1, *scenario.Queries[0].Expect.Rows)
	assert.Equal(t, []string{"One"}, scenario.Queries[0].Expect.Values["ex:title"])
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, validScenario+"assertion: []\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_WithBasePath(t *testing.T) {
	path := writeScenario(t, validScenario)
	moved := filepath.Join(t.TempDir(), "moved.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(moved, data, 0644))

	_, err = LoadScenario(moved)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")

	scenario, err := LoadScenarioWithBasePath(moved, filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schema", "items.cue"), scenario.Schema[0])
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "description is required",
		},
		{
			name: "missing schema",
			content: `
name: x
description: "x"
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "schema list is required",
		},
		{
			name: "schema file not found",
			content: `
name: x
description: "x"
schema: [schema/missing.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "schema file not found",
		},
		{
			name: "no queries",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
`,
			wantErr: "queries list is required",
		},
		{
			name: "relative node path",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
sessions:
  - nodes:
      - {path: one, type: "ex:item"}
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "sessions[0].nodes[0]: path must be absolute",
		},
		{
			name: "root node path",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
sessions:
  - nodes:
      - {path: /, type: "ex:item"}
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "below the root",
		},
		{
			name: "node without type",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
sessions:
  - nodes:
      - {path: /one}
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "sessions[0].nodes[0]: type is required",
		},
		{
			name: "empty session",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
sessions:
  - nodes: []
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: "sessions[0]: nodes list is required",
		},
		{
			name: "duplicate query name",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
  - {name: q, statement: "SELECT * FROM [ex:item]"}
`,
			wantErr: `duplicate query name "q"`,
		},
		{
			name: "missing statement",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q}
`,
			wantErr: "queries[0]: statement is required",
		},
		{
			name: "error with result checks",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - name: q
    statement: "SELECT * FROM [ex:item]"
    expect: {error: SYNTAX, rows: 0}
`,
			wantErr: "error cannot be combined with result checks",
		},
		{
			name: "unknown assertion type",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
assertions:
  - type: row_order
`,
			wantErr: `unknown assertion type "row_order"`,
		},
		{
			name: "repeatable unknown query",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
assertions:
  - {type: repeatable, query: other}
`,
			wantErr: `unknown query "other"`,
		},
		{
			name: "repeatable negative times",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
assertions:
  - {type: repeatable, query: q, times: -1}
`,
			wantErr: "times must be non-negative",
		},
		{
			name: "same_values with one column",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
assertions:
  - type: same_values
    columns:
      - {query: q, column: "ex:title"}
`,
			wantErr: "at least two columns",
		},
		{
			name: "same_values without column",
			content: `
name: x
description: "x"
schema: [schema/items.cue]
queries:
  - {name: q, statement: "SELECT * FROM [ex:item]"}
assertions:
  - type: same_values
    columns:
      - {query: q, column: "ex:title"}
      - {query: q}
`,
			wantErr: "column is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestColumnRef_String(t *testing.T) {
	assert.Equal(t, "titles.ex:title", ColumnRef{Query: "titles", Column: "ex:title"}.String())
}
