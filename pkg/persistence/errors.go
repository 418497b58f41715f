// Package persistence provides standardized error types for store operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no workflow exists under the given name.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrEmptyWorkflow indicates an attempt to persist a workflow with no steps.
	ErrEmptyWorkflow = errors.New("workflow has no steps")

	// ErrInvalidDocument indicates an imported workflow document failed
	// schema validation.
	ErrInvalidDocument = errors.New("invalid workflow document")
)

// WorkflowError wraps store errors with the operation and workflow name.
type WorkflowError struct {
	Op   string // Operation being performed (e.g. "Save", "Delete")
	Name string // Workflow name if applicable
	Err  error  // Underlying error
}

func (e *WorkflowError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %q: %v", e.Op, e.Name, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, name string, err error) *WorkflowError {
	return &WorkflowError{Op: op, Name: name, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsEmptyWorkflow checks if an error indicates an empty step sequence.
func IsEmptyWorkflow(err error) bool {
	return errors.Is(err, ErrEmptyWorkflow)
}

// IsInvalidDocument checks if an error indicates a rejected import document.
func IsInvalidDocument(err error) bool {
	return errors.Is(err, ErrInvalidDocument)
}
