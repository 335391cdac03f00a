package emit

// Event represents an observability event emitted during flow execution.
// Executor.emit produces one for each of: flow_start, flow_ok, flow_fail,
// resume, checkpoint_save, step_ok, step_fail, step_stop, compensation_ok,
// compensation_fail.
type Event struct {
	// RunID is the flow ID (FlowState.FlowID()) of the run that emitted
	// this event.
	RunID string

	// Step is the depth of the emitting node's ordinal path (len(path)).
	// Zero for flow_start, flow_ok and flow_fail; for resume it is the depth
	// of the checkpoint's cursor.
	Step int

	// NodeID is the ordinal path (e.g. "0.1") of the IR node that emitted
	// this event. Empty string for flow_start, flow_ok and flow_fail; for
	// resume it is the checkpoint's cursor.
	NodeID string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Executor.emit sets:
	//   - "name": the step or compensation name the event concerns
	//   - "error": the failure's error text, present on step_fail,
	//     compensation_fail, and flow_fail events
	Meta map[string]interface{}
}
