package flow

import "errors"

// ErrorKind classifies why a flow run failed, so host code can branch on the
// category of failure without parsing messages.
type ErrorKind int

const (
	// BuildError means FlowBuilder.Build (or FlowConfig-based Build)
	// rejected the IR: duplicate step names, an If with no branches, a
	// Break outside a loop, WithCompensation with no preceding Step, or an
	// unclosed control-flow block.
	BuildError ErrorKind = iota
	// StepFailure means a Step body returned a non-nil error.
	StepFailure
	// StepStopped means a Step body returned false (a non-exceptional stop
	// signal), not an error.
	StepStopped
	// Cancelled means the run's context was cancelled before or during a
	// Step; distinct from StepFailure because no step body actually failed.
	Cancelled
	// CompensationFailure means a compensation body returned an error during
	// rollback. It is recorded in the trace; it never replaces the primary
	// error that triggered rollback.
	CompensationFailure
	// Infrastructure means a FlowStore operation (Save, Load, Delete) failed
	// unexpectedly.
	Infrastructure
	// IncompatibleCheckpoint means ResumeAsync was given a checkpoint whose
	// SchemaVersion does not match, or no checkpoint exists for the flow ID.
	IncompatibleCheckpoint
)

func (k ErrorKind) String() string {
	switch k {
	case BuildError:
		return "BuildError"
	case StepFailure:
		return "StepFailure"
	case StepStopped:
		return "StepStopped"
	case Cancelled:
		return "Cancelled"
	case CompensationFailure:
		return "CompensationFailure"
	case Infrastructure:
		return "Infrastructure"
	case IncompatibleCheckpoint:
		return "IncompatibleCheckpoint"
	default:
		return "Unknown"
	}
}

// FlowError is the error type returned for every flow-engine failure. It
// always carries a Kind so callers can branch without string matching, and
// unwraps to the underlying cause when there is one.
type FlowError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *FlowError) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap returns the underlying cause, if any, so errors.Is/errors.As work
// against sentinel causes (e.g. a context.DeadlineExceeded).
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate when MaxAttempts
// or the BaseDelay/MaxDelay relationship is invalid.
var ErrInvalidRetryPolicy = errors.New("flow: invalid retry policy")
