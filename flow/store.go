package flow

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned by FlowStore.Load when no checkpoint is
// recorded for the given flow ID.
var ErrCheckpointNotFound = errors.New("flow: checkpoint not found")

// FlowStore persists and recovers run checkpoints. Implementations must
// make Save durable before it returns, and must tolerate at most one writer
// per flow ID at a time — concurrent Save calls for the same flow ID are
// undefined, matching the engine's single-writer-per-run model.
type FlowStore[S any] interface {
	// Save overwrites any existing checkpoint for flowID.
	Save(ctx context.Context, flowID string, checkpoint Checkpoint[S]) error
	// Load returns the current checkpoint for flowID, or ErrCheckpointNotFound
	// if none exists.
	Load(ctx context.Context, flowID string) (Checkpoint[S], error)
	// Delete removes any checkpoint for flowID. Called by the executor after
	// a run reaches a terminal outcome (success or failure).
	Delete(ctx context.Context, flowID string) error
	// List returns every flow ID with a live checkpoint, for recovery scans.
	List(ctx context.Context) ([]string, error)
}
