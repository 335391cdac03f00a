package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sagaflow/flow/emit"
)

// Executor interprets a Flow[S] against a state value: a synchronous,
// single-threaded depth-first walk of the IR, checkpointing after every
// successful Step and running saga compensation (in LIFO order) if forward
// progress is ever aborted.
type Executor[S FlowState] struct {
	store                FlowStore[S]
	emitter              emit.Emitter
	metrics              *FlowMetrics
	resilience           ResiliencePipelineProvider
	defaultStepTimeout   time.Duration
	compensationDeadline time.Duration
	runWallClockBudget   time.Duration
}

// NewExecutor returns an Executor backed by store, configured by opts.
func NewExecutor[S FlowState](store FlowStore[S], opts ...Option[S]) *Executor[S] {
	ex := &Executor[S]{
		store:      store,
		emitter:    emit.NewNullEmitter(),
		resilience: NewNoOpProvider(),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// compEntry is one entry on the run's in-memory compensation stack: the
// live closure plus enough identity to persist a CompensationRef.
type compEntry[S any] struct {
	stepName string
	path     []int
	body     CompensationBody[S]
}

// execState carries everything that varies across a single run: the
// compensation stack, the accumulated trace, the first recorded failure,
// and the control signals (abort, break, resume fast-forward cursor) the
// recursive traversal functions thread through the call stack.
type execState[S any] struct {
	compStack []compEntry[S]
	trace     []StepRecord
	firstErr  error
	aborted   bool
	breaking  bool
	// cursor, while non-empty, is the remaining ordinal path the traversal
	// is fast-forwarding through to reach a resumed run's last completed
	// step; once consumed it is left nil for the rest of the run.
	cursor []int
}

func (es *execState[S]) fail(name string, elapsed time.Duration, kind ErrorKind, msg string, cause error) {
	es.trace = append(es.trace, StepRecord{Name: name, Outcome: Failed, Elapsed: elapsed, Err: cause})
	if es.firstErr == nil {
		es.firstErr = &FlowError{Kind: kind, Message: msg, Cause: cause}
	}
	es.aborted = true
}

func childPath(path []int, idx int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = idx
	return out
}

func pathString(path []int) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func (ex *Executor[S]) emit(flowID string, path []int, msg string, meta map[string]any) {
	if ex.emitter == nil {
		return
	}
	ex.emitter.Emit(emit.Event{
		RunID:  flowID,
		Step:   len(path),
		NodeID: pathString(path),
		Msg:    msg,
		Meta:   meta,
	})
}

// ExecuteAsync runs f against state from the beginning. It never consults
// any existing checkpoint for state.FlowID() — use ResumeAsync for that.
func (ex *Executor[S]) ExecuteAsync(ctx context.Context, f *Flow[S], state S) (FlowResult[S], error) {
	return ex.run(ctx, f, state, nil, nil)
}

// ResumeAsync loads the checkpoint for flowID, replaces the supplied Flow's
// resume point with it, and continues the run. f must be the same flow
// definition the original run used: the checkpoint stores state and cursor,
// never the IR itself.
func (ex *Executor[S]) ResumeAsync(ctx context.Context, f *Flow[S], flowID string) (FlowResult[S], error) {
	cp, err := ex.store.Load(ctx, flowID)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return FlowResult[S]{}, &FlowError{Kind: IncompatibleCheckpoint, Message: "no checkpoint found for " + flowID, Cause: err}
		}
		return FlowResult[S]{}, &FlowError{Kind: Infrastructure, Message: "failed to load checkpoint for " + flowID, Cause: err}
	}
	if cp.SchemaVersion != CheckpointSchemaVersion {
		return FlowResult[S]{}, &FlowError{Kind: IncompatibleCheckpoint, Message: fmt.Sprintf("checkpoint schema version %d is incompatible with %d", cp.SchemaVersion, CheckpointSchemaVersion)}
	}

	compStack := make([]compEntry[S], 0, len(cp.CompensationStack))
	for _, ref := range cp.CompensationStack {
		body, ok := lookupCompensation[S](f.nodes, ref.Path, cp.State)
		if !ok {
			return FlowResult[S]{}, &FlowError{Kind: IncompatibleCheckpoint, Message: "checkpoint references unknown step path for " + ref.StepID}
		}
		compStack = append(compStack, compEntry[S]{stepName: ref.StepID, path: ref.Path, body: body})
	}

	ex.emit(flowID, cp.Cursor, "resume", nil)
	return ex.run(ctx, f, cp.State, cp.Cursor, compStack)
}

func (ex *Executor[S]) run(ctx context.Context, f *Flow[S], state S, cursor []int, compStack []compEntry[S]) (FlowResult[S], error) {
	if ex.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ex.runWallClockBudget)
		defer cancel()
	}

	es := &execState[S]{cursor: cursor, compStack: compStack}

	if ex.metrics != nil {
		ex.metrics.IncFlowsInflight()
		defer ex.metrics.DecFlowsInflight()
	}

	ex.emit(state.FlowID(), nil, "flow_start", nil)
	runNodes(ctx, f.nodes, state, nil, es, ex)

	if es.aborted {
		ex.rollback(ctx, state, es)
		if delErr := ex.deleteCheckpoint(ctx, state.FlowID()); delErr != nil {
			es.trace = append(es.trace, StepRecord{Name: "checkpoint_delete", Outcome: Failed, Err: delErr})
		}
		ex.emit(state.FlowID(), nil, "flow_fail", map[string]any{"error": es.firstErr.Error()})
		return FlowResult[S]{IsSuccess: false, State: state, Error: es.firstErr, Trace: es.trace}, nil
	}

	if delErr := ex.deleteCheckpoint(ctx, state.FlowID()); delErr != nil {
		return FlowResult[S]{IsSuccess: false, State: state, Trace: es.trace,
			Error: &FlowError{Kind: Infrastructure, Message: "failed to delete checkpoint on success", Cause: delErr}}, nil
	}

	ex.emit(state.FlowID(), nil, "flow_ok", nil)
	return FlowResult[S]{IsSuccess: true, State: state, Trace: es.trace}, nil
}

func (ex *Executor[S]) checkpoint(ctx context.Context, state S, path []int, es *execState[S]) error {
	if ex.store == nil {
		return nil
	}
	refs := make([]CompensationRef, len(es.compStack))
	for i, c := range es.compStack {
		refs[i] = CompensationRef{StepID: c.stepName, Path: append([]int{}, c.path...)}
	}
	cp := Checkpoint[S]{
		FlowID:            state.FlowID(),
		Cursor:            append([]int{}, path...),
		State:             state,
		CompensationStack: refs,
		SchemaVersion:     CheckpointSchemaVersion,
	}
	if err := ex.store.Save(ctx, state.FlowID(), cp); err != nil {
		return err
	}
	ex.emit(state.FlowID(), path, "checkpoint_save", nil)
	return nil
}

func (ex *Executor[S]) deleteCheckpoint(ctx context.Context, flowID string) error {
	if ex.store == nil {
		return nil
	}
	return ex.store.Delete(ctx, flowID)
}

func (ex *Executor[S]) rollback(ctx context.Context, state S, es *execState[S]) {
	for i := len(es.compStack) - 1; i >= 0; i-- {
		entry := es.compStack[i]
		cctx, cancel := compensationContext(ctx, ex.compensationDeadline)
		start := time.Now()
		err := runCompensationBody(cctx, entry.body, state)
		elapsed := time.Since(start)
		cancel()

		if ex.metrics != nil {
			ex.metrics.RecordCompensation()
		}

		if err != nil {
			ex.emit(state.FlowID(), entry.path, "compensation_fail", map[string]any{"name": entry.stepName, "error": err.Error()})
			es.trace = append(es.trace, StepRecord{
				Name: entry.stepName, Outcome: Compensated, Elapsed: elapsed,
				Err: &FlowError{Kind: CompensationFailure, Message: "compensation for " + entry.stepName + " failed", Cause: err},
			})
			continue
		}
		ex.emit(state.FlowID(), entry.path, "compensation_ok", map[string]any{"name": entry.stepName})
		es.trace = append(es.trace, StepRecord{Name: entry.stepName, Outcome: Compensated, Elapsed: elapsed})
	}
}

func runCompensationBody[S any](ctx context.Context, body CompensationBody[S], state S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensation panicked: %v", r)
		}
	}()
	return body(ctx, state)
}

// runNode dispatches a single node by concrete kind.
func runNode[S FlowState](ctx context.Context, n node, state S, path []int, es *execState[S], ex *Executor[S]) {
	switch v := n.(type) {
	case *stepNode[S]:
		runStep(ctx, v, state, path, es, ex)
	case *mutationNode[S]:
		v.apply(state)
	case *ifNode[S]:
		runIf(ctx, v, state, path, es, ex)
	case *whileNode[S]:
		runWhile(ctx, v, state, path, es, ex)
	case *repeatNode[S]:
		runRepeat(ctx, v, state, path, es, ex)
	case *breakNode[S]:
		if v.guard == nil || v.guard(state) {
			es.breaking = true
		}
	case *forEachNode[S]:
		runForEach(ctx, v, state, path, es, ex)
	}
}

// runNodes walks a sibling node list in order. When es.cursor is non-empty
// on entry, nodes before es.cursor[0] are treated as already completed and
// skipped; the node at es.cursor[0] is either the checkpointed boundary
// itself (skipped, once, if the cursor ends there) or is entered with the
// cursor's tail so the fast-forward can continue one level deeper.
func runNodes[S FlowState](ctx context.Context, nodes []node, state S, path []int, es *execState[S], ex *Executor[S]) {
	start := 0
	resuming := len(es.cursor) > 0
	var tail []int
	if resuming {
		start = es.cursor[0]
		tail = es.cursor[1:]
	}

	for i := start; i < len(nodes); i++ {
		if es.aborted || es.breaking {
			return
		}
		if resuming && i == start {
			if len(tail) == 0 {
				es.cursor = nil
				continue
			}
			es.cursor = tail
		} else {
			es.cursor = nil
		}
		runNode(ctx, nodes[i], state, childPath(path, i), es, ex)
		if es.aborted || es.breaking {
			return
		}
	}
}

func runStep[S FlowState](ctx context.Context, n *stepNode[S], state S, path []int, es *execState[S], ex *Executor[S]) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		es.fail(n.name, 0, Cancelled, "execution cancelled before step "+n.name, err)
		return
	}

	stepCtx, cancel := stepContext(ctx, ex.defaultStepTimeout)
	defer cancel()

	pipeline := ex.resilience.Get(n.name)
	var ok bool
	stepErr := pipeline.ExecuteAsync(stepCtx, func(innerCtx context.Context) error {
		var bodyErr error
		ok, bodyErr = n.body(innerCtx, state)
		return bodyErr
	})

	elapsed := time.Since(start)

	if stepErr != nil {
		kind := StepFailure
		if stepCtx.Err() == context.Canceled {
			kind = Cancelled
		}
		ex.emit(state.FlowID(), path, "step_fail", map[string]any{"name": n.name, "error": stepErr.Error()})
		if ex.metrics != nil {
			ex.metrics.RecordStep(elapsed, "failed")
		}
		es.fail(n.name, elapsed, kind, "step "+n.name+" failed", stepErr)
		return
	}

	if !ok {
		ex.emit(state.FlowID(), path, "step_stop", map[string]any{"name": n.name})
		if ex.metrics != nil {
			ex.metrics.RecordStep(elapsed, "stopped")
		}
		es.trace = append(es.trace, StepRecord{Name: n.name, Outcome: Stopped, Elapsed: elapsed})
		if es.firstErr == nil {
			es.firstErr = &FlowError{Kind: StepStopped, Message: "step " + n.name + " returned stop"}
		}
		es.aborted = true
		return
	}

	if ex.metrics != nil {
		ex.metrics.RecordStep(elapsed, "ok")
	}
	es.trace = append(es.trace, StepRecord{Name: n.name, Outcome: Ok, Elapsed: elapsed})
	ex.emit(state.FlowID(), path, "step_ok", map[string]any{"name": n.name})

	if n.compensation != nil {
		es.compStack = append(es.compStack, compEntry[S]{stepName: n.name, path: append([]int{}, path...), body: n.compensation})
	}

	if err := ex.checkpoint(ctx, state, path, es); err != nil {
		es.fail(n.name, 0, Infrastructure, "checkpoint save failed after step "+n.name, err)
	}
}

func runIf[S FlowState](ctx context.Context, n *ifNode[S], state S, path []int, es *execState[S], ex *Executor[S]) {
	if len(es.cursor) > 0 {
		branchIdx := es.cursor[0]
		es.cursor = es.cursor[1:]
		if branchIdx < len(n.branches) {
			runNodes(ctx, n.branches[branchIdx].body, state, childPath(path, branchIdx), es, ex)
		} else {
			runNodes(ctx, n.elseBody, state, childPath(path, len(n.branches)), es, ex)
		}
		return
	}

	for bi, branch := range n.branches {
		if branch.guard(state) {
			runNodes(ctx, branch.body, state, childPath(path, bi), es, ex)
			return
		}
	}
	if n.hasElse {
		runNodes(ctx, n.elseBody, state, childPath(path, len(n.branches)), es, ex)
	}
}

func runWhile[S FlowState](ctx context.Context, n *whileNode[S], state S, path []int, es *execState[S], ex *Executor[S]) {
	resuming := len(es.cursor) > 0
	targetIter := 0
	var tail []int
	if resuming {
		targetIter = es.cursor[0]
		tail = es.cursor[1:]
	}

	for iter := 0; ; iter++ {
		if es.aborted || es.breaking {
			return
		}
		if resuming && iter < targetIter {
			continue
		}
		isResumeIter := resuming && iter == targetIter
		if !isResumeIter {
			if !n.guard(state) {
				return
			}
		}
		if isResumeIter {
			es.cursor = tail
		} else {
			es.cursor = nil
		}
		runNodes(ctx, n.body, state, childPath(path, iter), es, ex)
		if isResumeIter {
			resuming = false
		}
		if es.breaking {
			es.breaking = false
			return
		}
		if es.aborted {
			return
		}
	}
}

func runRepeat[S FlowState](ctx context.Context, n *repeatNode[S], state S, path []int, es *execState[S], ex *Executor[S]) {
	resuming := len(es.cursor) > 0
	targetIter := 0
	var tail []int
	if resuming {
		targetIter = es.cursor[0]
		tail = es.cursor[1:]
	}
	start := 0
	if resuming {
		start = targetIter
	}

	for iter := start; iter < n.count; iter++ {
		if es.aborted || es.breaking {
			return
		}
		isResumeIter := resuming && iter == targetIter
		if isResumeIter {
			es.cursor = tail
		} else {
			es.cursor = nil
		}
		runNodes(ctx, n.body, state, childPath(path, iter), es, ex)
		if isResumeIter {
			resuming = false
		}
		if es.breaking {
			es.breaking = false
			return
		}
		if es.aborted {
			return
		}
	}
}

func runForEach[S FlowState](ctx context.Context, n *forEachNode[S], state S, path []int, es *execState[S], ex *Executor[S]) {
	resuming := len(es.cursor) > 0
	startIdx := 0
	var tail []int
	if resuming {
		startIdx = es.cursor[0]
		tail = es.cursor[1:]
	}

	items := n.selectFn(state)
	for idx := startIdx; idx < len(items); idx++ {
		if es.aborted {
			return
		}
		isResumeIter := resuming && idx == startIdx
		if isResumeIter {
			es.cursor = tail
		} else {
			es.cursor = nil
		}

		elementFlow := n.bodyFn(items[idx])
		hadErr := es.firstErr
		runNodes(ctx, elementFlow.nodes, state, childPath(path, idx), es, ex)
		if isResumeIter {
			resuming = false
		}

		if es.breaking {
			// Break targets a loop enclosing the ForEach, if any; the
			// ForEach itself is not a loop for Break's purposes.
			return
		}
		if es.aborted {
			if n.policy == ContinueOnFailure {
				es.aborted = false
				es.firstErr = hadErr
				continue
			}
			return
		}
	}
}

// lookupCompensation walks the static IR (mirroring the path convention
// runNodes/runWhile/runRepeat/runForEach use at run time) to recover the
// compensation body recorded at path. Since loop and ForEach bodies reuse
// the same static nodes across iterations/elements, the dynamic
// iteration/element index segment is consumed without indexing into the
// static node list at that level; ForEach additionally needs state to
// rebuild the element's sub-flow (selectFn/bodyFn are assumed deterministic
// given the same state). If branches are located by the branch index stored
// in the path, not by re-evaluating guards.
func lookupCompensation[S any](nodes []node, path []int, state S) (CompensationBody[S], bool) {
	if len(path) == 0 {
		return nil, false
	}
	idx := path[0]
	if idx < 0 || idx >= len(nodes) {
		return nil, false
	}
	rest := path[1:]

	switch v := nodes[idx].(type) {
	case *stepNode[S]:
		if len(rest) != 0 {
			return nil, false
		}
		return v.compensation, v.compensation != nil
	case *mutationNode[S]:
		return nil, false
	case *ifNode[S]:
		if len(rest) == 0 {
			return nil, false
		}
		bi := rest[0]
		if bi < len(v.branches) {
			return lookupCompensation[S](v.branches[bi].body, rest[1:], state)
		}
		return lookupCompensation[S](v.elseBody, rest[1:], state)
	case *whileNode[S]:
		if len(rest) < 1 {
			return nil, false
		}
		return lookupCompensation[S](v.body, rest[1:], state)
	case *repeatNode[S]:
		if len(rest) < 1 {
			return nil, false
		}
		return lookupCompensation[S](v.body, rest[1:], state)
	case *breakNode[S]:
		return nil, false
	case *forEachNode[S]:
		if len(rest) < 1 {
			return nil, false
		}
		items := v.selectFn(state)
		elIdx := rest[0]
		if elIdx < 0 || elIdx >= len(items) {
			return nil, false
		}
		elementFlow := v.bodyFn(items[elIdx])
		return lookupCompensation[S](elementFlow.nodes, rest[1:], state)
	default:
		return nil, false
	}
}
