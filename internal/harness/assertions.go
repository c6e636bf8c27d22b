package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions need beyond the recorded
// outcomes.
type AssertionContext struct {
	Ctx context.Context

	// Execute runs the named scenario query again.
	Execute func(ctx context.Context, name string) (*QueryOutcome, error)
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRepeatable:
			err = assertRepeatable(result, a, actx)
		case AssertSameValues:
			err = assertSameValues(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertRepeatable re-executes a query and compares every execution with the
// recorded outcome, byte for byte in canonical form.
func assertRepeatable(result *Result, a Assertion, actx *AssertionContext) error {
	first, ok := result.Query(a.Query)
	if !ok {
		return fmt.Errorf("no outcome for query %q", a.Query)
	}
	want, err := canonicalOutcome(first)
	if err != nil {
		return err
	}

	times := a.Times
	if times == 0 {
		times = 2
	}
	for run := 2; run <= times; run++ {
		again, err := actx.Execute(actx.Ctx, a.Query)
		if err != nil {
			return err
		}
		got, err := canonicalOutcome(again)
		if err != nil {
			return err
		}
		if !bytes.Equal(want, got) {
			return &AssertionError{
				Type:     AssertRepeatable,
				Expected: string(want),
				Actual:   fmt.Sprintf("execution %d: %s", run, got),
			}
		}
	}
	return nil
}

// assertSameValues checks that all columns take the same value set.
func assertSameValues(result *Result, a Assertion) error {
	var want []string
	for i, c := range a.Columns {
		o, ok := result.Query(c.Query)
		if !ok {
			return fmt.Errorf("no outcome for query %q", c.Query)
		}
		if o.Error != "" {
			return fmt.Errorf("query %q failed with %s", c.Query, o.Error)
		}
		if !slices.Contains(o.Columns, c.Column) {
			return fmt.Errorf("query %q has no column %q", c.Query, c.Column)
		}
		got := valueSet(o.Values(c.Column))
		if i == 0 {
			want = got
			continue
		}
		if !slices.Equal(want, got) {
			return &AssertionError{
				Type:     AssertSameValues,
				Expected: fmt.Sprintf("%s = %v", a.Columns[0], want),
				Actual:   fmt.Sprintf("%s = %v", c, got),
			}
		}
	}
	return nil
}
