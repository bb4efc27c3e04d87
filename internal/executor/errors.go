package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPages is wrapped by ResolutionError when nothing is tracked.
	ErrNoPages = errors.New("no pages available")
	// ErrTimeout is wrapped by ExecutionError when the deadline passed.
	ErrTimeout = errors.New("timeout exceeded")
	// ErrUnsupported marks an unknown action or extraction name.
	ErrUnsupported = errors.New("unsupported")
)

// ValidationError reports a missing or malformed input. It is returned
// before any call-log entry exists.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ResolutionError reports that no page or frame could host the command.
type ResolutionError struct {
	Selector string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("resolving target: %v", e.Err)
	}
	return fmt.Sprintf("resolving %s: %v", e.Selector, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ExecutionError reports a command that started and failed. Its call-log
// entry carries the same message.
type ExecutionError struct {
	Title string
	LogID string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Title, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
