package store

import "github.com/sagaflow/flow"

// The FlowStore contract itself lives in the core flow package (flow.FlowStore)
// so that executor.go and every backend here share one definition without an
// import cycle. These assertions just pin each backend to that contract at
// compile time.
var (
	_ flow.FlowStore[flow.FlowState] = (*MemStore[flow.FlowState])(nil)
	_ flow.FlowStore[flow.FlowState] = (*SQLiteStore[flow.FlowState])(nil)
	_ flow.FlowStore[flow.FlowState] = (*MySQLStore[flow.FlowState])(nil)
)
