package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sagaflow/flow/store"
)

func TestCheckpoint_SavedAfterEveryStep(t *testing.T) {
	st := store.NewMemStore[*testState]()
	ex := NewExecutor[*testState](st)

	f, err := Create[*testState]("checkpointed").
		Step("a", noopStep).
		Step("b", func(_ context.Context, s *testState) (bool, error) {
			// Mid-run: a checkpoint for step "a" must already be visible.
			ids, listErr := st.List(context.Background())
			if listErr != nil {
				t.Fatalf("List: %v", listErr)
			}
			if len(ids) != 1 {
				t.Fatalf("expected one live checkpoint while running step b, got %v", ids)
			}
			return true, nil
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res, err := ex.ExecuteAsync(context.Background(), f, &testState{ID: "cp-1"})
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if !res.IsSuccess {
		t.Fatalf("expected success, got %v", res.Error)
	}

	ids, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected checkpoint deleted on success, got %v", ids)
	}
}

func TestCheckpoint_DeletedAfterHandledFailure(t *testing.T) {
	st := store.NewMemStore[*testState]()
	ex := NewExecutor[*testState](st)

	f, _ := Create[*testState]("fails").
		Step("a", noopStep).
		Step("b", func(context.Context, *testState) (bool, error) { return false, errors.New("boom") }).
		Build()

	res, err := ex.ExecuteAsync(context.Background(), f, &testState{ID: "cp-2"})
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if res.IsSuccess {
		t.Fatalf("expected failure")
	}

	ids, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected checkpoint deleted after handled failure too, got %v", ids)
	}
}

func TestCheckpoint_ResumeRebuildsCompensationStackFromIR(t *testing.T) {
	st := store.NewMemStore[*testState]()
	var compRan []string
	crash := true

	build := func() *Flow[*testState] {
		f, _ := Create[*testState]("resume-comp").
			Step("a", noopStep).WithCompensation(func(_ context.Context, s *testState) error {
			compRan = append(compRan, "a")
			return nil
		}).
			Step("b", func(_ context.Context, s *testState) (bool, error) {
				if crash {
					panic("crash before b's checkpoint")
				}
				return true, nil
			}).WithCompensation(func(_ context.Context, s *testState) error {
			compRan = append(compRan, "b")
			return nil
		}).
			Step("c", func(context.Context, *testState) (bool, error) {
				return false, errors.New("c always fails after resume")
			}).
			Build()
		return f
	}

	state := &testState{ID: "resume-comp-1"}
	func() {
		defer func() { recover() }()
		ex := NewExecutor[*testState](st)
		_, _ = ex.ExecuteAsync(context.Background(), build(), state)
	}()

	crash = false
	ex2 := NewExecutor[*testState](st)
	res, err := ex2.ResumeAsync(context.Background(), build(), "resume-comp-1")
	if err != nil {
		t.Fatalf("ResumeAsync: %v", err)
	}
	if res.IsSuccess {
		t.Fatalf("expected failure from step c")
	}
	// a's compensation must still fire on rollback even though it was never
	// re-entered by the resumed run: its ref was rebuilt from the checkpoint.
	if len(compRan) != 2 || compRan[0] != "b" || compRan[1] != "a" {
		t.Fatalf("compRan = %v, want [b, a]", compRan)
	}
}

func TestCheckpoint_CompensationContextSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	compRan := false

	f, _ := Create[*testState]("cancel-comp").
		Step("a", noopStep).WithCompensation(func(compCtx context.Context, s *testState) error {
		compRan = true
		if err := compCtx.Err(); err != nil {
			t.Fatalf("compensation context observed cancellation: %v", err)
		}
		return nil
	}).
		Step("b", func(context.Context, *testState) (bool, error) {
			cancel() // cancel the forward run's context mid-flight
			return false, errors.New("triggers rollback")
		}).
		Build()

	ex := NewExecutor[*testState](store.NewMemStore[*testState]())
	res, err := ex.ExecuteAsync(ctx, f, &testState{ID: "cancel-comp-1"})
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if res.IsSuccess {
		t.Fatalf("expected failure")
	}
	if !compRan {
		t.Fatalf("expected compensation to run despite forward cancellation")
	}
}

func TestCheckpoint_StepTimeoutFailsSlowStep(t *testing.T) {
	f, _ := Create[*testState]("slow").
		Step("slow", func(ctx context.Context, s *testState) (bool, error) {
			select {
			case <-time.After(50 * time.Millisecond):
				return true, nil
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}).
		Build()

	ex := NewExecutor[*testState](store.NewMemStore[*testState](), WithDefaultStepTimeout[*testState](5*time.Millisecond))
	res, err := ex.ExecuteAsync(context.Background(), f, &testState{ID: "slow-1"})
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if res.IsSuccess {
		t.Fatalf("expected timeout to fail the step")
	}
	var fe *FlowError
	if !errors.As(res.Error, &fe) || fe.Kind != StepFailure {
		t.Fatalf("expected StepFailure from step timeout, got %v", res.Error)
	}
}
