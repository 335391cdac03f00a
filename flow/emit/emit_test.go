package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

var (
	_ Emitter = (*NullEmitter)(nil)
	_ Emitter = (*BufferedEmitter)(nil)
	_ Emitter = (*LogEmitter)(nil)
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	e := NewNullEmitter()
	e.Emit(Event{RunID: "r1", Msg: "flow_start"})
	if err := e.EmitBatch(context.Background(), []Event{{RunID: "r1"}, {RunID: "r2"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestBufferedEmitter_RecordsEventsPerRunID(t *testing.T) {
	e := NewBufferedEmitter()
	e.Emit(Event{RunID: "r1", NodeID: "a", Msg: "step_ok"})
	e.Emit(Event{RunID: "r1", NodeID: "b", Msg: "step_ok"})
	e.Emit(Event{RunID: "r2", NodeID: "a", Msg: "step_fail"})

	r1 := e.GetHistory("r1")
	if len(r1) != 2 {
		t.Fatalf("GetHistory(r1) = %v, want 2 events", r1)
	}
	r2 := e.GetHistory("r2")
	if len(r2) != 1 {
		t.Fatalf("GetHistory(r2) = %v, want 1 event", r2)
	}
	if none := e.GetHistory("never-ran"); len(none) != 0 {
		t.Fatalf("GetHistory(never-ran) = %v, want empty", none)
	}
}

func TestBufferedEmitter_GetHistoryWithFilter(t *testing.T) {
	e := NewBufferedEmitter()
	e.Emit(Event{RunID: "r1", NodeID: "a", Msg: "step_ok", Step: 1})
	e.Emit(Event{RunID: "r1", NodeID: "b", Msg: "step_fail", Step: 2})
	e.Emit(Event{RunID: "r1", NodeID: "a", Msg: "step_ok", Step: 3})

	filtered := e.GetHistoryWithFilter("r1", HistoryFilter{NodeID: "a"})
	if len(filtered) != 2 {
		t.Fatalf("filter by NodeID=a returned %v, want 2", filtered)
	}

	filtered = e.GetHistoryWithFilter("r1", HistoryFilter{Msg: "step_fail"})
	if len(filtered) != 1 {
		t.Fatalf("filter by Msg=step_fail returned %v, want 1", filtered)
	}

	minStep := 2
	filtered = e.GetHistoryWithFilter("r1", HistoryFilter{MinStep: &minStep})
	if len(filtered) != 2 {
		t.Fatalf("filter by MinStep=2 returned %v, want 2", filtered)
	}
}

func TestBufferedEmitter_ClearSpecificAndAll(t *testing.T) {
	e := NewBufferedEmitter()
	e.Emit(Event{RunID: "r1"})
	e.Emit(Event{RunID: "r2"})

	e.Clear("r1")
	if len(e.GetHistory("r1")) != 0 {
		t.Fatalf("expected r1 cleared")
	}
	if len(e.GetHistory("r2")) != 1 {
		t.Fatalf("expected r2 untouched")
	}

	e.Clear("")
	if len(e.GetHistory("r2")) != 0 {
		t.Fatalf("expected all runs cleared")
	}
}

func TestBufferedEmitter_EmitBatchPreservesOrder(t *testing.T) {
	e := NewBufferedEmitter()
	batch := []Event{
		{RunID: "r1", NodeID: "a"},
		{RunID: "r1", NodeID: "b"},
		{RunID: "r1", NodeID: "c"},
	}
	if err := e.EmitBatch(context.Background(), batch); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	got := e.GetHistory("r1")
	if len(got) != 3 || got[0].NodeID != "a" || got[2].NodeID != "c" {
		t.Fatalf("GetHistory = %v, want order a,b,c preserved", got)
	}
}

func TestLogEmitter_JSONModeWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	e.Emit(Event{RunID: "r1", Step: 2, NodeID: "0.1", Msg: "step_ok", Meta: map[string]interface{}{"name": "reserve"}})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", line, err)
	}
	if decoded["flow_id"] != "r1" {
		t.Fatalf("flow_id = %v, want r1", decoded["flow_id"])
	}
	if decoded["message"] != "step_ok" {
		t.Fatalf("message = %v, want step_ok", decoded["message"])
	}
	if decoded["path"] != "0.1" {
		t.Fatalf("path = %v, want 0.1", decoded["path"])
	}
}

func TestLogEmitter_ErrorLevelWhenMetaHasError(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	e.Emit(Event{RunID: "r1", Msg: "step_fail", Meta: map[string]interface{}{"error": "boom"}})

	line := buf.String()
	if !strings.Contains(line, `"error":"boom"`) || !strings.Contains(line, `"level":"error"`) {
		t.Fatalf("expected error-level log line to mention the failure, got %q", line)
	}
}

func TestLogEmitter_NilWriterDefaultsToStdout(t *testing.T) {
	e := NewLogEmitter(nil, true)
	if e == nil {
		t.Fatalf("expected a non-nil emitter")
	}
}
