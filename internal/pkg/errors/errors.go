package errors

import (
	"errors"
	"fmt"
	"strings"
)

// AppError represents an application error with additional context
type AppError struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Internal error       `json:"-"`
	Details  interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeDependency = "DEPENDENCY_ERROR"
	ErrCodeDiscovery  = "DISCOVERY_ERROR"
	ErrCodeProvision  = "PROVISION_ERROR"
	ErrCodeDeletion   = "DELETION_ERROR"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Common error constructors

// Internal creates an internal error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Dependency creates a caller error for missing required dependency
// fields. It is never retried and is surfaced before any collaborator
// call is made.
func Dependency(fields ...string) *AppError {
	return New(ErrCodeDependency,
		fmt.Sprintf("missing required dependency: %s", strings.Join(fields, " or "))).
		WithDetails(fields)
}

// Discovery creates a discovery failure error. Nothing safe can be
// done without accurate inventory, so callers must treat this as
// fail-closed.
func Discovery(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDiscovery,
		fmt.Sprintf("failed to enumerate %s", operation))
}

// Provision creates a provisioning failure error for a single resource
func Provision(kind string, err error) *AppError {
	return Wrap(err, ErrCodeProvision,
		fmt.Sprintf("failed to provision %s", kind))
}

// Deletion creates a deletion failure error for a single resource
func Deletion(name string, err error) *AppError {
	return Wrap(err, ErrCodeDeletion,
		fmt.Sprintf("failed to delete %s", name))
}

// IsDependency reports whether err is a missing-dependency caller error
func IsDependency(err error) bool {
	return hasCode(err, ErrCodeDependency)
}

// IsDiscovery reports whether err is a discovery failure
func IsDiscovery(err error) bool {
	return hasCode(err, ErrCodeDiscovery)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
