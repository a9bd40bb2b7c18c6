// Package metrics exposes demo activity as Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "tickdemo"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	increments    *prom.CounterVec
	skipped       *prom.CounterVec
	resets        prom.Counter
	signals       *prom.CounterVec
	transitions   prom.Counter
	mode          prom.Gauge
	taskSuspended *prom.GaugeVec
	queueDepth    *prom.GaugeVec
	produced      *prom.CounterVec
	consumed      prom.Counter
	dropped       prom.Counter
	frames        prom.Counter
	fps           prom.Gauge
}

// New creates and registers the collectors.
func New(namespace string, reg prom.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	m := &Metrics{
		increments: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "counter_increments_total",
			Help:      "Successful counter increments by signal source.",
		}, []string{"source"}),
		skipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "counter_skipped_total",
			Help:      "Counter operations skipped because the lock was busy.",
		}, []string{"op"}),
		resets: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "counter_resets_total",
			Help:      "Counter resets performed by the reset timer.",
		}),
		signals: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_signals_total",
			Help:      "Signals fired by the input dispatcher.",
		}, []string{"signal"}),
		transitions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "Completed mode transitions.",
		}),
		mode: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Index of the active application mode.",
		}),
		taskSuspended: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "task_suspended",
			Help:      "1 if the task is suspended, 0 otherwise.",
		}, []string{"task"}),
		queueDepth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current queue depth.",
		}, []string{"queue"}),
		produced: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Tick messages enqueued by producer tag.",
		}, []string{"producer"}),
		consumed: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Tick messages dequeued by the aggregation consumer.",
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Dequeued tick messages rejected because every slot of their tick was taken.",
		}),
		frames: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Screen updates issued by the render driver.",
		}),
		fps: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "fps",
			Help:      "Moving average of rendered frames per second.",
		}),
	}

	var err error
	if m.increments, err = registerCollector(reg, m.increments); err != nil {
		return nil, err
	}
	if m.skipped, err = registerCollector(reg, m.skipped); err != nil {
		return nil, err
	}
	if m.resets, err = registerCollector(reg, m.resets); err != nil {
		return nil, err
	}
	if m.signals, err = registerCollector(reg, m.signals); err != nil {
		return nil, err
	}
	if m.transitions, err = registerCollector(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.mode, err = registerCollector(reg, m.mode); err != nil {
		return nil, err
	}
	if m.taskSuspended, err = registerCollector(reg, m.taskSuspended); err != nil {
		return nil, err
	}
	if m.queueDepth, err = registerCollector(reg, m.queueDepth); err != nil {
		return nil, err
	}
	if m.produced, err = registerCollector(reg, m.produced); err != nil {
		return nil, err
	}
	if m.consumed, err = registerCollector(reg, m.consumed); err != nil {
		return nil, err
	}
	if m.dropped, err = registerCollector(reg, m.dropped); err != nil {
		return nil, err
	}
	if m.frames, err = registerCollector(reg, m.frames); err != nil {
		return nil, err
	}
	if m.fps, err = registerCollector(reg, m.fps); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordIncrement counts a successful counter increment from source.
func (m *Metrics) RecordIncrement(source string) {
	if m == nil {
		return
	}
	m.increments.WithLabelValues(normalizeLabel(source, "unknown")).Inc()
}

// RecordSkipped counts a counter operation dropped under lock contention.
func (m *Metrics) RecordSkipped(op string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(op, "unknown")).Inc()
}

// RecordReset counts a counter reset.
func (m *Metrics) RecordReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

// RecordSignal counts a dispatched signal.
func (m *Metrics) RecordSignal(signal string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(normalizeLabel(signal, "unknown")).Inc()
}

// RecordTransition counts a mode transition and sets the active mode.
func (m *Metrics) RecordTransition(mode int) {
	if m == nil {
		return
	}
	m.transitions.Inc()
	m.mode.Set(float64(mode))
}

// SetMode sets the active mode without counting a transition.
func (m *Metrics) SetMode(mode int) {
	if m == nil {
		return
	}
	m.mode.Set(float64(mode))
}

// SetTaskSuspended records whether a task is suspended.
func (m *Metrics) SetTaskSuspended(task string, suspended bool) {
	if m == nil {
		return
	}
	v := 0.0
	if suspended {
		v = 1
	}
	m.taskSuspended.WithLabelValues(normalizeLabel(task, "unknown")).Set(v)
}

// RecordQueueDepth records the depth of a queue.
func (m *Metrics) RecordQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queue, "unknown")).Set(float64(depth))
}

// RecordProduced counts a message enqueued by producer tag.
func (m *Metrics) RecordProduced(tag int) {
	if m == nil {
		return
	}
	m.produced.WithLabelValues(fmt.Sprintf("%d", tag)).Inc()
}

// RecordConsumed counts a dequeued message.
func (m *Metrics) RecordConsumed() {
	if m == nil {
		return
	}
	m.consumed.Inc()
}

// RecordDropped counts a dequeued message the aggregation buffer rejected.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// RecordFrame counts a screen update and records the current FPS.
func (m *Metrics) RecordFrame(fps int) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.fps.Set(float64(fps))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
