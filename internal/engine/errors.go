package engine

import (
	"errors"
	"fmt"
)

// ExecutionError represents an error detected while executing a query.
//
// Execution errors include:
//   - Store failure: candidate selection or node loading failed
//   - Cancelled: the context ended before the result was complete
//   - Unsupported: the query uses a construct the engine cannot evaluate
//
// Compilation problems (unknown selectors, properties, node types) are
// reported earlier by queryir.Validate as *queryir.QueryError.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// Message is a human-readable description.
	Message string

	// Selector names the selector being evaluated, if any.
	Selector string

	// Err is the underlying cause.
	Err error
}

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeStore indicates the store failed to answer a read.
	ErrCodeStore ExecutionErrorCode = "STORE_FAILURE"

	// ErrCodeCancelled indicates the context was cancelled.
	ErrCodeCancelled ExecutionErrorCode = "CANCELLED"

	// ErrCodeUnsupported indicates an IR construct the engine does not evaluate.
	ErrCodeUnsupported ExecutionErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Selector != "" {
		msg += fmt.Sprintf(" (selector=%s)", e.Selector)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsStoreError returns true if the error is a store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeStore
	}
	return false
}

// IsCancelled returns true if execution stopped because the context ended.
func IsCancelled(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeCancelled
	}
	return false
}

func storeError(selector, message string, err error) *ExecutionError {
	return &ExecutionError{Code: ErrCodeStore, Message: message, Selector: selector, Err: err}
}

func cancelled(err error) *ExecutionError {
	return &ExecutionError{Code: ErrCodeCancelled, Message: "query execution cancelled", Err: err}
}
