package jcr

import (
	"errors"
	"fmt"
)

// RepositoryError is the error type returned by every jcr operation.
type RepositoryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the item path involved, if any.
	Path string

	// Err is the underlying cause (store, schema or query errors).
	Err error
}

// ErrorCode categorizes repository errors.
type ErrorCode string

const (
	ErrCodeConfiguration      ErrorCode = "CONFIGURATION"
	ErrCodeNamespace          ErrorCode = "NAMESPACE"
	ErrCodeNoSuchNodeType     ErrorCode = "NO_SUCH_NODE_TYPE"
	ErrCodeNodeTypeDefinition ErrorCode = "INVALID_NODE_TYPE_DEFINITION"
	ErrCodeConstraint         ErrorCode = "CONSTRAINT_VIOLATION"
	ErrCodeItemExists         ErrorCode = "ITEM_EXISTS"
	ErrCodePathNotFound       ErrorCode = "PATH_NOT_FOUND"
	ErrCodeItemNotFound       ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeValueFormat        ErrorCode = "VALUE_FORMAT"
	ErrCodeInvalidQuery       ErrorCode = "INVALID_QUERY"
	ErrCodeInvalidItemState   ErrorCode = "INVALID_ITEM_STATE"
	ErrCodeNoSuchWorkspace    ErrorCode = "NO_SUCH_WORKSPACE"
	ErrCodeSessionClosed      ErrorCode = "SESSION_CLOSED"
	ErrCodeRepository         ErrorCode = "REPOSITORY"
)

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a *RepositoryError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var re *RepositoryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newError(code ErrorCode, path, format string, args ...any) *RepositoryError {
	return &RepositoryError{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

func wrapError(code ErrorCode, path string, err error, format string, args ...any) *RepositoryError {
	return &RepositoryError{Code: code, Message: fmt.Sprintf(format, args...), Path: path, Err: err}
}
