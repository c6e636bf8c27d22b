package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomeResult(outcomes ...QueryOutcome) *Result {
	result := NewResult()
	result.Queries = append(result.Queries, outcomes...)
	return result
}

// replay returns an AssertionContext whose Execute hands out the given
// outcomes in order.
func replay(outcomes ...QueryOutcome) *AssertionContext {
	return &AssertionContext{
		Ctx: context.Background(),
		Execute: func(ctx context.Context, name string) (*QueryOutcome, error) {
			if len(outcomes) == 0 {
				return nil, errors.New("no more executions")
			}
			o := outcomes[0]
			outcomes = outcomes[1:]
			return &o, nil
		},
	}
}

var targets = QueryOutcome{
	Name:    "targets",
	Columns: []string{"target"},
	Rows:    []map[string][]string{{"target": {"b", "c"}}},
}

func TestAssertRepeatable_Pass(t *testing.T) {
	result := outcomeResult(targets)
	a := Assertion{Type: AssertRepeatable, Query: "targets", Times: 3}

	err := assertRepeatable(result, a, replay(targets, targets))
	assert.NoError(t, err)
}

func TestAssertRepeatable_DefaultTimes(t *testing.T) {
	calls := 0
	actx := &AssertionContext{
		Ctx: context.Background(),
		Execute: func(ctx context.Context, name string) (*QueryOutcome, error) {
			calls++
			return &targets, nil
		},
	}

	err := assertRepeatable(outcomeResult(targets), Assertion{Type: AssertRepeatable, Query: "targets"}, actx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAssertRepeatable_Differs(t *testing.T) {
	reordered := targets
	reordered.Rows = []map[string][]string{{"target": {"c", "b"}}}

	err := assertRepeatable(outcomeResult(targets), Assertion{Type: AssertRepeatable, Query: "targets", Times: 3},
		replay(targets, reordered))
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertRepeatable, ae.Type)
	assert.Contains(t, ae.Actual, "execution 3")
	assert.Contains(t, ae.Actual, `["c","b"]`)
}

func TestAssertRepeatable_ExecuteFails(t *testing.T) {
	err := assertRepeatable(outcomeResult(targets), Assertion{Type: AssertRepeatable, Query: "targets"}, replay())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no more executions")
}

func TestAssertRepeatable_UnknownQuery(t *testing.T) {
	err := assertRepeatable(outcomeResult(), Assertion{Type: AssertRepeatable, Query: "targets"}, replay())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no outcome for query "targets"`)
}

func TestAssertSameValues(t *testing.T) {
	joined := QueryOutcome{
		Name:    "joined",
		Columns: []string{"a2.jcr:uuid"},
		Rows: []map[string][]string{
			{"a2.jcr:uuid": {"c"}},
			{"a2.jcr:uuid": {"b"}},
			{"a2.jcr:uuid": {"b"}},
		},
	}
	other := QueryOutcome{
		Name:    "other",
		Columns: []string{"id"},
		Rows:    []map[string][]string{{"id": {"b"}}},
	}
	failed := QueryOutcome{Name: "failed", Columns: []string{}, Rows: []map[string][]string{}, Error: "SYNTAX"}
	result := outcomeResult(targets, joined, other, failed)

	tests := []struct {
		name    string
		columns []ColumnRef
		wantErr string
	}{
		{
			name:    "order and repetition ignored",
			columns: []ColumnRef{{"targets", "target"}, {"joined", "a2.jcr:uuid"}},
		},
		{
			name:    "different sets",
			columns: []ColumnRef{{"targets", "target"}, {"other", "id"}},
			wantErr: "other.id = [b]",
		},
		{
			name:    "unknown column",
			columns: []ColumnRef{{"targets", "target"}, {"other", "name"}},
			wantErr: `query "other" has no column "name"`,
		},
		{
			name:    "failed query",
			columns: []ColumnRef{{"targets", "target"}, {"failed", "x"}},
			wantErr: `query "failed" failed with SYNTAX`,
		},
		{
			name:    "missing query",
			columns: []ColumnRef{{"targets", "target"}, {"absent", "x"}},
			wantErr: `no outcome for query "absent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertSameValues(result, Assertion{Type: AssertSameValues, Columns: tt.columns})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertRepeatable, Query: "targets"},
		{Type: AssertSameValues, Columns: []ColumnRef{{"targets", "target"}, {"targets", "target"}}},
	}

	errs := EvaluateAssertions(outcomeResult(targets), assertions, replay(targets))
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertRepeatable, Query: "targets"},
		{Type: AssertRepeatable, Query: "missing"},
		{Type: "row_order"},
	}

	errs := EvaluateAssertions(outcomeResult(targets), assertions, replay(targets))
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "row_order"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSameValues,
		Expected: "a.x = [1 2]",
		Actual:   "b.y = [1]",
	}

	assert.Equal(t, "Assertion failed: same_values\n  Expected: a.x = [1 2]\n  Actual: b.y = [1]", err.Error())
}
