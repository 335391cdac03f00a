package emit

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	return tp, exporter
}

func TestOTelEmitter_EmitProducesOneSpanPerEvent(t *testing.T) {
	tp, exporter := newRecordingTracer(t)
	defer tp.Shutdown(context.Background())

	e := NewOTelEmitter(tp.Tracer("sagaflow"))
	e.Emit(Event{RunID: "r1", Step: 2, NodeID: "0.1", Msg: "step_ok", Meta: map[string]interface{}{"name": "reserve"}})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "step_ok" {
		t.Fatalf("span name = %q, want step_ok", span.Name)
	}

	attrs := map[string]string{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["sagaflow.flow_id"] != "r1" {
		t.Fatalf("sagaflow.flow_id = %q, want r1", attrs["sagaflow.flow_id"])
	}
	if attrs["sagaflow.path"] != "0.1" {
		t.Fatalf("sagaflow.path = %q, want 0.1", attrs["sagaflow.path"])
	}
	if attrs["sagaflow.name"] != "reserve" {
		t.Fatalf("sagaflow.name = %q, want reserve", attrs["sagaflow.name"])
	}
}

func TestOTelEmitter_EmitMarksErrorStatus(t *testing.T) {
	tp, exporter := newRecordingTracer(t)
	defer tp.Shutdown(context.Background())

	e := NewOTelEmitter(tp.Tracer("sagaflow"))
	e.Emit(Event{RunID: "r1", Msg: "step_fail", Meta: map[string]interface{}{"error": "boom"}})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Description != "boom" {
		t.Fatalf("status description = %q, want boom", spans[0].Status.Description)
	}
	if len(spans[0].Events) == 0 {
		t.Fatalf("expected RecordError to add a span event")
	}
}

func TestOTelEmitter_EmitBatchProducesOneSpanPerEvent(t *testing.T) {
	tp, exporter := newRecordingTracer(t)
	defer tp.Shutdown(context.Background())

	e := NewOTelEmitter(tp.Tracer("sagaflow"))
	err := e.EmitBatch(context.Background(), []Event{
		{RunID: "r1", Msg: "step_ok"},
		{RunID: "r1", Msg: "step_ok"},
		{RunID: "r1", Msg: "flow_ok"},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if got := len(exporter.GetSpans()); got != 3 {
		t.Fatalf("got %d spans, want 3", got)
	}
}

func TestOTelEmitter_MetadataDurationConvertsToMilliseconds(t *testing.T) {
	tp, exporter := newRecordingTracer(t)
	defer tp.Shutdown(context.Background())

	e := NewOTelEmitter(tp.Tracer("sagaflow"))
	e.Emit(Event{RunID: "r1", Msg: "step_ok", Meta: map[string]interface{}{"elapsed": 250 * time.Millisecond}})

	spans := exporter.GetSpans()
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == "sagaflow.elapsed" {
			if kv.Value.AsInt64() != 250 {
				t.Fatalf("sagaflow.elapsed = %d, want 250", kv.Value.AsInt64())
			}
			return
		}
	}
	t.Fatalf("expected a sagaflow.elapsed attribute")
}
