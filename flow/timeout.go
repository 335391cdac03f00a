package flow

import (
	"context"
	"time"
)

// stepContext applies the executor's default step timeout, if set, to ctx.
// A zero timeout means unlimited: ctx is returned unchanged with a no-op
// cancel.
func stepContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// compensationContext derives a context for compensation bodies that never
// observes the forward run's cancellation, per the cooperative-cancellation
// model: compensation must still run to completion even if the caller
// cancelled the run. An optional deadline still bounds a single
// compensation body's execution time. Values set on ctx (loggers, request
// IDs) remain visible; only cancellation is suppressed.
func compensationContext(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, deadline)
}
