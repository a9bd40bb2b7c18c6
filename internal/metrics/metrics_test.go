package metrics

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := New("demo", reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.RecordIncrement("semaphore")
	m.RecordIncrement("semaphore")
	m.RecordIncrement("notification")
	m.RecordSkipped("increment")
	m.RecordReset()
	m.RecordSignal("mode")
	m.RecordTransition(1)
	m.SetTaskSuspended("producer-1", true)
	m.RecordQueueDepth("ticks", 7)
	m.RecordProduced(2)
	m.RecordConsumed()
	m.RecordDropped()
	m.RecordFrame(50)

	if got := testutil.ToFloat64(m.increments.WithLabelValues("semaphore")); got != 2 {
		t.Errorf("semaphore increments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.increments.WithLabelValues("notification")); got != 1 {
		t.Errorf("notification increments = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("increment")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.resets); got != 1 {
		t.Errorf("resets = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mode); got != 1 {
		t.Errorf("mode = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transitions); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.taskSuspended.WithLabelValues("producer-1")); got != 1 {
		t.Errorf("task suspended = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues("ticks")); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.produced.WithLabelValues("2")); got != 1 {
		t.Errorf("produced = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.fps); got != 50 {
		t.Errorf("fps = %v, want 50", got)
	}

	m.SetTaskSuspended("producer-1", false)
	if got := testutil.ToFloat64(m.taskSuspended.WithLabelValues("producer-1")); got != 0 {
		t.Errorf("task suspended after resume = %v, want 0", got)
	}
}

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := New("demo", reg)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	second, err := New("demo", reg)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}

	first.RecordReset()
	second.RecordReset()

	if got := testutil.ToFloat64(first.resets); got != 2 {
		t.Errorf("shared resets = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordIncrement("semaphore")
	m.RecordSkipped("read")
	m.RecordReset()
	m.RecordSignal("x")
	m.RecordTransition(0)
	m.SetMode(0)
	m.SetTaskSuspended("t", true)
	m.RecordQueueDepth("q", 1)
	m.RecordProduced(1)
	m.RecordConsumed()
	m.RecordDropped()
	m.RecordFrame(1)
}
