// Package store provides FlowStore implementations: an in-memory reference
// store, plus durable SQLite- and MySQL-backed stores.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sagaflow/flow"
)

// MemStore is the in-memory reference FlowStore: a single map guarded by a
// single mutex, per spec. Checkpoints are lost on process exit; suitable
// for tests and short-lived development runs.
type MemStore[S any] struct {
	mu          sync.Mutex
	checkpoints map[string]flow.Checkpoint[S]
}

// NewMemStore returns an empty MemStore.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{checkpoints: make(map[string]flow.Checkpoint[S])}
}

// Save stores a snapshot of checkpoint.State (a JSON round trip), so later
// in-place mutations by the running flow do not change the stored checkpoint.
func (s *MemStore[S]) Save(_ context.Context, flowID string, checkpoint flow.Checkpoint[S]) error {
	data, err := json.Marshal(checkpoint.State)
	if err != nil {
		return err
	}
	var snapshot S
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	checkpoint.State = snapshot
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[flowID] = checkpoint
	return nil
}

func (s *MemStore[S]) Load(_ context.Context, flowID string) (flow.Checkpoint[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[flowID]
	if !ok {
		return flow.Checkpoint[S]{}, flow.ErrCheckpointNotFound
	}
	return cp, nil
}

func (s *MemStore[S]) Delete(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, flowID)
	return nil
}

func (s *MemStore[S]) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	return ids, nil
}
