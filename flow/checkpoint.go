package flow

// CheckpointSchemaVersion is the schema version stamped on every checkpoint
// this build writes. ResumeAsync rejects a checkpoint whose SchemaVersion
// does not match with IncompatibleCheckpoint, rather than guessing at a
// migration.
const CheckpointSchemaVersion = 1

// CompensationRef identifies a completed step whose compensation must be
// replayed on rollback after a resume. StepID is the step's (unique) name;
// Path is the ordinal path the executor recorded the step's completion at,
// used to relocate the step's compensation body in the static IR (and, for
// steps inside a ForEach, to rebuild the element sub-flow the body belongs
// to) since compensation closures themselves are not serializable.
type CompensationRef struct {
	StepID string
	Path   []int
}

// Checkpoint is the durable snapshot a FlowStore persists after every
// successful Step: enough to resume a run without re-executing anything
// before the cursor. The flow's IR itself is never part of a checkpoint —
// it is code, not data — so ResumeAsync always takes the Flow to interpret
// alongside the flow ID to resume.
type Checkpoint[S any] struct {
	FlowID            string
	Cursor            []int
	State             S
	CompensationStack []CompensationRef
	SchemaVersion     int
}
