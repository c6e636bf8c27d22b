package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a repository scenario.
// Content is written through sessions, then queries run in a fresh session
// and their results are checked.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden snapshots are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema lists CUE node type files, registered in order.
	// Paths are relative to the scenario file location.
	Schema []string `yaml:"schema"`

	// Namespaces maps prefixes to URIs. They are registered before the
	// schema so node type names can use them.
	Namespaces map[string]string `yaml:"namespaces,omitempty"`

	// Sessions write content. Each session saves once and logs out.
	Sessions []SessionStep `yaml:"sessions"`

	// Queries run after all sessions, in order.
	Queries []QueryStep `yaml:"queries"`

	// Assertions relate query results to each other.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SessionStep is one writer session.
type SessionStep struct {
	// Workspace to log in to. Empty means the default workspace.
	Workspace string `yaml:"workspace,omitempty"`

	// Nodes are added in order; a parent must exist or be added earlier.
	Nodes []NodeStep `yaml:"nodes"`
}

// NodeStep adds one node.
type NodeStep struct {
	// Path is the absolute path of the new node.
	Path string `yaml:"path"`

	// Type is the primary node type.
	Type string `yaml:"type"`

	// Properties maps property names to a scalar or a list. A list always
	// sets every value, so a one-element list on a multi-valued property
	// stays a list. Strings starting with "ref:" are references to the
	// node at the following path.
	Properties map[string]any `yaml:"properties,omitempty"`
}

// QueryStep executes one JCR-SQL2 statement.
type QueryStep struct {
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace,omitempty"`
	Statement string `yaml:"statement"`

	// Expect is checked against the result. If nil, the query only has to
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a query.
type Expect struct {
	// Rows is the expected row count.
	Rows *int `yaml:"rows,omitempty"`

	// Nodes is the expected number of nodes from QueryResult.Nodes.
	Nodes *int `yaml:"nodes,omitempty"`

	// NodePaths lists the paths of QueryResult.Nodes in order.
	NodePaths []string `yaml:"node_paths,omitempty"`

	// Values maps a column to the set of values it takes over all rows.
	// Order and repetition are not significant.
	Values map[string][]string `yaml:"values,omitempty"`

	// Error is the expected error code. Query codes (SYNTAX,
	// UNKNOWN_PROPERTY, ...) and repository codes (INVALID_QUERY, ...)
	// both match.
	Error string `yaml:"error,omitempty"`
}

// Assertion relates query results.
type Assertion struct {
	// Type specifies the assertion type:
	// - "repeatable": re-executing Query yields identical rows
	// - "same_values": all Columns take the same set of values
	Type string `yaml:"type"`

	// Query is the query name (used by repeatable).
	Query string `yaml:"query,omitempty"`

	// Times is how often the query is re-executed (used by repeatable).
	// Defaults to 2.
	Times int `yaml:"times,omitempty"`

	// Columns are the compared query columns (used by same_values).
	Columns []ColumnRef `yaml:"columns,omitempty"`
}

// ColumnRef names one column of one query.
type ColumnRef struct {
	Query  string `yaml:"query"`
	Column string `yaml:"column"`
}

func (c ColumnRef) String() string {
	return c.Query + "." + c.Column
}

// Assertion type constants.
const (
	AssertRepeatable = "repeatable"
	AssertSameValues = "same_values"
)

// refPrefix marks a value that names a node by path.
const refPrefix = "ref:"

// LoadScenario reads and parses a scenario YAML file, resolving schema
// paths relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schema {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Schema[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	for _, p := range s.Schema {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	for prefix, uri := range s.Namespaces {
		if prefix == "" || uri == "" {
			return fmt.Errorf("namespaces: prefix and uri are required (got %q: %q)", prefix, uri)
		}
	}

	for i, sess := range s.Sessions {
		if len(sess.Nodes) == 0 {
			return fmt.Errorf("sessions[%d]: nodes list is required and must be non-empty", i)
		}
		for j, n := range sess.Nodes {
			if !path.IsAbs(n.Path) || n.Path == "/" {
				return fmt.Errorf("sessions[%d].nodes[%d]: path must be absolute and below the root, got %q", i, j, n.Path)
			}
			if n.Type == "" {
				return fmt.Errorf("sessions[%d].nodes[%d]: type is required", i, j)
			}
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate query name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Statement == "" {
			return fmt.Errorf("queries[%d]: statement is required", i)
		}
		if q.Expect != nil && q.Expect.Error != "" && q.Expect.hasResultChecks() {
			return fmt.Errorf("queries[%d].expect: error cannot be combined with result checks", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, names); err != nil {
			return err
		}
	}

	return nil
}

func (e *Expect) hasResultChecks() bool {
	return e.Rows != nil || e.Nodes != nil || e.NodePaths != nil || e.Values != nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, queries map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRepeatable:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for repeatable", index)
		}
		if !queries[a.Query] {
			return fmt.Errorf("assertions[%d]: unknown query %q", index, a.Query)
		}
		if a.Times < 0 {
			return fmt.Errorf("assertions[%d]: times must be non-negative for repeatable", index)
		}
	case AssertSameValues:
		if len(a.Columns) < 2 {
			return fmt.Errorf("assertions[%d]: at least two columns are required for same_values", index)
		}
		for _, c := range a.Columns {
			if !queries[c.Query] {
				return fmt.Errorf("assertions[%d]: unknown query %q", index, c.Query)
			}
			if c.Column == "" {
				return fmt.Errorf("assertions[%d]: column is required for %s", index, c.Query)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
