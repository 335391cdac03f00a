// Package flow provides a durable saga-style workflow engine: a flow
// definition model (builder to immutable IR), an executor that interprets
// the IR against a state value with saga compensation and checkpointing,
// and a pluggable flow store.
package flow

// FlowState is the single capability every flow state value must provide: a
// stable, non-empty identifier used as the store's persistence key and as
// the correlator in the result trace and emitted events.
//
// The engine never interprets any other field of S; it passes the state by
// reference to step, mutation, and compensation bodies, which mutate it in
// place. Host state types should therefore be pointer types (or otherwise
// reference types) so mutations performed by a body are visible to the
// executor and to the FlowResult the caller eventually receives.
type FlowState interface {
	FlowID() string
}
