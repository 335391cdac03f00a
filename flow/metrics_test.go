package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sagaflow/flow/store"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestFlowMetrics_CompensationsCountedOnRollback(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewFlowMetrics(registry)

	f, _ := Create[*testState]("metrics-comp").
		Step("a", noopStep).WithCompensation(func(context.Context, *testState) error { return nil }).
		Step("b", func(context.Context, *testState) (bool, error) { return false, errors.New("boom") }).
		Build()

	ex := NewExecutor[*testState](store.NewMemStore[*testState](), WithMetrics[*testState](metrics))
	res, err := ex.ExecuteAsync(context.Background(), f, &testState{ID: "metrics-1"})
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if res.IsSuccess {
		t.Fatalf("expected failure")
	}
	if got := counterValue(t, metrics.compensations); got != 1 {
		t.Fatalf("compensations_total = %v, want 1", got)
	}
}

func TestFlowMetrics_FlowsInflightReturnsToZeroAfterRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewFlowMetrics(registry)

	f, _ := Create[*testState]("metrics-inflight").Step("a", noopStep).Build()
	ex := NewExecutor[*testState](store.NewMemStore[*testState](), WithMetrics[*testState](metrics))

	if _, err := ex.ExecuteAsync(context.Background(), f, &testState{ID: "inflight-1"}); err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	if got := gaugeValue(t, metrics.flowsInflight); got != 0 {
		t.Fatalf("flows_inflight = %v, want 0 after the run completes", got)
	}
}

func TestFlowMetrics_RecordRetryIncrementsCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewFlowMetrics(registry)
	metrics.RecordRetry()
	metrics.RecordRetry()
	if got := counterValue(t, metrics.retries); got != 2 {
		t.Fatalf("retries_total = %v, want 2", got)
	}
}
