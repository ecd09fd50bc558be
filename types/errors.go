package types

import (
	"errors"
	"fmt"
	"time"
)

// UnknownConfigurationError indicates the requested configuration name is
// not registered. It is detected before any environment work begins and
// is fatal to the whole invocation.
type UnknownConfigurationError struct {
	Name string
}

func (e *UnknownConfigurationError) Error() string {
	return fmt.Sprintf("unknown configuration %q", e.Name)
}

// BuildError indicates an environment could not be built. It is fatal to
// the current configuration only.
type BuildError struct {
	Environment EnvironmentRole
	Err         error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s environment: %v", e.Environment, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ExecutionTimeoutError indicates a workload run exceeded its time budget
// and was forcibly terminated.
type ExecutionTimeoutError struct {
	Environment EnvironmentRole
	Config      string
	Timeout     time.Duration
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("workload for configuration %q timed out in %s environment after %s",
		e.Config, e.Environment, e.Timeout)
}

// MissingArtifactError indicates the workload completed without producing
// an output file to collect.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("workload produced no output artifact at %s", e.Path)
}

// FormatError indicates an artifact line could not be parsed.
type FormatError struct {
	Path string
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed artifact %s at line %d: %v", e.Path, e.Line, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ReasonForError maps an error occurring inside a configuration's
// pipeline to its machine-readable failure reason.
func ReasonForError(err error) FailureReason {
	var (
		unknownErr *UnknownConfigurationError
		buildErr   *BuildError
		timeoutErr *ExecutionTimeoutError
		missingErr *MissingArtifactError
		formatErr  *FormatError
	)
	switch {
	case err == nil:
		return ReasonNone
	case errors.As(err, &unknownErr):
		return ReasonUnknownConfiguration
	case errors.As(err, &buildErr):
		return ReasonBuildError
	case errors.As(err, &timeoutErr):
		return ReasonExecutionTimeout
	case errors.As(err, &missingErr):
		return ReasonMissingArtifact
	case errors.As(err, &formatErr):
		return ReasonFormatError
	default:
		return ReasonRuntimeError
	}
}

// IsUnknownConfiguration checks if the error is or wraps an
// UnknownConfigurationError.
func IsUnknownConfiguration(err error) bool {
	var unknownErr *UnknownConfigurationError
	return err != nil && errors.As(err, &unknownErr)
}
