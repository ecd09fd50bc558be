package xcompat

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, file not found, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// ComparisonFailureError represents a failed comparison or configuration
// pipeline (exit code 1)
type ComparisonFailureError struct {
	Message string
}

func (e *ComparisonFailureError) Error() string {
	return fmt.Sprintf("comparison failure: %s", e.Message)
}

// NewComparisonFailureError creates a new ComparisonFailureError
func NewComparisonFailureError(message string) *ComparisonFailureError {
	return &ComparisonFailureError{Message: message}
}

// IsComparisonFailureError checks if the error is or wraps a
// ComparisonFailureError
func IsComparisonFailureError(err error) bool {
	var cmpErr *ComparisonFailureError
	return err != nil && errors.As(err, &cmpErr)
}
