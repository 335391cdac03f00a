package flow

import "time"

// Outcome is the per-step result recorded in a FlowResult's trace.
type Outcome int

const (
	// Ok means the step's body returned true and no error.
	Ok Outcome = iota
	// Stopped means the step's body returned false: a non-exceptional halt.
	Stopped
	// Failed means the step's body (or, inside a ForEach with
	// ContinueOnFailure, an element's body) returned an error.
	Failed
	// Compensated marks a compensation body invoked during rollback. It
	// appears in the trace after the step record that triggered rollback.
	Compensated
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	case Compensated:
		return "Compensated"
	default:
		return "Unknown"
	}
}

// StepRecord is one entry in a FlowResult's trace, appended in execution
// order (compensation records are appended in LIFO rollback order, after
// the record of the step whose failure triggered rollback).
type StepRecord struct {
	Name    string
	Outcome Outcome
	Elapsed time.Duration
	Err     error
}

// FlowResult is returned by ExecuteAsync and ResumeAsync. On success,
// IsSuccess is true, State holds the final mutated state, and Error is nil.
// On failure, IsSuccess is false, State holds the state as left after
// rollback, Error holds the first primary failure, and Trace records every
// step and compensation outcome along the way.
type FlowResult[S any] struct {
	IsSuccess bool
	State     S
	Error     error
	Trace     []StepRecord
}
