package flow

import (
	"time"

	"github.com/sagaflow/flow/emit"
)

// Option configures an Executor at construction time.
//
// Example:
//
//	ex := flow.NewExecutor[*OrderState](store,
//	    flow.WithEmitter[*OrderState](emit.NewLogEmitter(os.Stdout, false)),
//	    flow.WithDefaultStepTimeout[*OrderState](10*time.Second),
//	)
type Option[S FlowState] func(*Executor[S])

// WithEmitter sets the Emitter events are sent to. Default: emit.NullEmitter.
func WithEmitter[S FlowState](e emit.Emitter) Option[S] {
	return func(ex *Executor[S]) { ex.emitter = e }
}

// WithMetrics attaches a FlowMetrics instance. Default: nil (no metrics).
func WithMetrics[S FlowState](m *FlowMetrics) Option[S] {
	return func(ex *Executor[S]) { ex.metrics = m }
}

// WithResilience sets the ResiliencePipelineProvider used to wrap step
// body invocations. Default: a provider returning NoOpPipeline for every
// step name.
func WithResilience[S FlowState](p ResiliencePipelineProvider) Option[S] {
	return func(ex *Executor[S]) { ex.resilience = p }
}

// WithDefaultStepTimeout bounds every Step body's execution time. Default: 0
// (unlimited).
func WithDefaultStepTimeout[S FlowState](d time.Duration) Option[S] {
	return func(ex *Executor[S]) { ex.defaultStepTimeout = d }
}

// WithCompensationDeadline bounds a single compensation body's execution
// time during rollback. Default: 0 (unlimited).
func WithCompensationDeadline[S FlowState](d time.Duration) Option[S] {
	return func(ex *Executor[S]) { ex.compensationDeadline = d }
}

// WithRunWallClockBudget bounds a run's forward execution: once the budget
// expires, the running Step sees its context done and no further Step starts.
// Compensation bodies run on a context detached from this budget (bounded
// only by WithCompensationDeadline). Default: 0 (unlimited).
func WithRunWallClockBudget[S FlowState](d time.Duration) Option[S] {
	return func(ex *Executor[S]) { ex.runWallClockBudget = d }
}
