package harness

// QueryOutcome is what one query produced.
type QueryOutcome struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`

	// Rows holds, per row, the values of every column whose property is
	// present. Absent columns have no entry.
	Rows []map[string][]string `json:"rows"`

	// NodePaths are the paths of QueryResult.Nodes, or nil when the result
	// spans several selectors.
	NodePaths []string `json:"node_paths,omitempty"`

	// Error is the error code when the query failed.
	Error string `json:"error,omitempty"`
}

// Values returns the distinct values of a column over all rows, in first
// appearance order.
func (o *QueryOutcome) Values(column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range o.Rows {
		for _, v := range row[column] {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation and assertion
	// held.
	Pass bool `json:"pass"`

	// Queries holds one outcome per scenario query, in scenario order.
	Queries []QueryOutcome `json:"queries"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryOutcome{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Query returns the outcome of the named query.
func (r *Result) Query(name string) (*QueryOutcome, bool) {
	for i := range r.Queries {
		if r.Queries[i].Name == name {
			return &r.Queries[i], true
		}
	}
	return nil, false
}
