package incremental

import (
	"errors"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
)

// CallbackError wraps a failure raised by a user-supplied transform or output callback.
type CallbackError struct {
	NodeID   domain.NodeID
	NodeName string
	Position int
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("node %q (%s) failed at entry %d: %v", e.NodeName, e.NodeID, e.Position, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Diagnostic converts the failure into an error diagnostic attributed to the node.
func (e *CallbackError) Diagnostic() domain.Diagnostic {
	return domain.Diagnostic{
		Severity: domain.SeverityError,
		Code:     domain.CodeCallbackFailure,
		Message:  e.Err.Error(),
		NodeID:   e.NodeID,
		NodeName: e.NodeName,
		Position: e.Position,
	}
}

// PanicError carries a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", e.Value)
}

// BuildError aggregates structural problems found while declaring a pipeline.
type BuildError struct {
	Pipeline string
	Errors   []error
}

func (e *BuildError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("pipeline %q: %s", e.Pipeline, e.Errors[0].Error())
	}
	msg := fmt.Sprintf("pipeline %q: %d errors:\n", e.Pipeline, len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes every aggregated error to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error { return e.Errors }

// BuildErrors returns the aggregated errors if err is a BuildError, otherwise nil.
func BuildErrors(err error) []error {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Errors
	}
	return nil
}
