package flow

import "context"

// Mediator is a narrow, optional outbound-call seam a step body may use. The
// engine never implements or depends on a concrete Mediator; it exists only
// so host step bodies have a documented way to accept one by injection
// (typically via closure capture when the step body is constructed).
type Mediator interface {
	Send(ctx context.Context, request any) error
}
