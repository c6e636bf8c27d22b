package queryir

import (
	"errors"
	"fmt"
)

// Query error codes.
const (
	ErrCodeSyntax            = "SYNTAX"
	ErrCodeUnknownSelector   = "UNKNOWN_SELECTOR"
	ErrCodeDuplicateSelector = "DUPLICATE_SELECTOR"
	ErrCodeUnknownNodeType   = "UNKNOWN_NODE_TYPE"
	ErrCodeUnknownProperty   = "UNKNOWN_PROPERTY"
	ErrCodeAmbiguousSelector = "AMBIGUOUS_SELECTOR"
	ErrCodeUnsupported       = "UNSUPPORTED"
)

// QueryError is a structured query compilation error.
// Pos is a byte offset into the statement, or -1 when unknown.
type QueryError struct {
	Code    string
	Message string
	Pos     int
}

func (e *QueryError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("query error %s at offset %d: %s", e.Code, e.Pos, e.Message)
	}
	return fmt.Sprintf("query error %s: %s", e.Code, e.Message)
}

// Errorf builds a *QueryError.
func Errorf(code string, pos int, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// IsQueryError reports whether err is a *QueryError with the given code.
// An empty code matches any QueryError.
func IsQueryError(err error, code string) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}
	return code == "" || qe.Code == code
}
