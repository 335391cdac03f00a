package emit

import "context"

// NullEmitter implements Emitter by discarding all events. It is the
// Executor's default when no Option[S] sets an emitter.
type NullEmitter struct{}

// NewNullEmitter returns an emitter that discards every event, safe for
// concurrent use with zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

func (n *NullEmitter) Emit(event Event) {}

func (n *NullEmitter) EmitBatch(_ context.Context, events []Event) error { return nil }

func (n *NullEmitter) Flush(_ context.Context) error { return nil }
