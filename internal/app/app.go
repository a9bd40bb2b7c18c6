// Package app wires the demo's components into a runnable System.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/tickdemo/internal/config"
	"github.com/sweeney/tickdemo/internal/counter"
	"github.com/sweeney/tickdemo/internal/debounce"
	"github.com/sweeney/tickdemo/internal/dispatch"
	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/mode"
	"github.com/sweeney/tickdemo/internal/mqtt"
	"github.com/sweeney/tickdemo/internal/pipeline"
	"github.com/sweeney/tickdemo/internal/render"
	"github.com/sweeney/tickdemo/internal/rtos"
	"github.com/sweeney/tickdemo/internal/status"
)

// ErrQuit is returned by Run when the quit key was pressed.
var ErrQuit = errors.New("app: quit requested")

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "tickdemo"

// Options are the boundaries injected into New. Nil fields select defaults.
type Options struct {
	Config *config.Config

	// Kernel defaults to a kernel at Config.TickRateHz. The System owns it
	// either way and closes it in Close.
	Kernel *rtos.Kernel
	// Screen defaults to a gg canvas of render.Width x render.Height.
	Screen render.Screen
	// Input may be nil: the demo then runs without keys.
	Input input.Source
	// Publisher may be nil: events are then only logged.
	Publisher mqtt.Publisher
	// Registry defaults to a fresh registry.
	Registry *prometheus.Registry
	// Tracker defaults to a tracker with a zero run ID.
	Tracker *status.Tracker
}

// Tasks holds the handles of every task the System created.
type Tasks struct {
	Render               *rtos.Task
	Mode                 *rtos.Task
	SemaphoreConsumer    *rtos.Task
	NotificationConsumer *rtos.Task
	Blinkers             []*rtos.Task
	Producers            []*rtos.Task
	Consumer             *rtos.Task
}

// System is the assembled demo.
type System struct {
	Config   *config.Config
	Kernel   *rtos.Kernel
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Tracker  *status.Tracker

	// Canvas is set when New created the default screen.
	Canvas  *render.Canvas
	Surface *render.Surface

	Counter     *counter.Counter
	Display     *counter.Display
	Semaphore   *rtos.Semaphore
	ModeTrigger *rtos.Semaphore
	ResetTimer  *rtos.Timer
	Dispatcher  *dispatch.Dispatcher
	Queue       *rtos.Queue[pipeline.TickMessage]
	Rows        *pipeline.Buffer
	Machine     *mode.Machine
	Tasks       Tasks

	input     input.Source
	publisher mqtt.Publisher
	events    chan mqtt.Event

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates every primitive and task. Any creation failure is fatal: the
// tasks already started are stopped before the error is returned.
func New(opts Options) (*System, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	k := opts.Kernel
	if k == nil {
		k = rtos.NewKernel(cfg.TickRateHz)
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = status.NewTracker("", time.Now(), StatusConfig(cfg))
	}

	m, err := metrics.New(MetricsNamespace, reg)
	if err != nil {
		k.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	s := &System{
		Config:    cfg,
		Kernel:    k,
		Registry:  reg,
		Metrics:   m,
		Tracker:   tracker,
		input:     opts.Input,
		publisher: opts.Publisher,
		events:    make(chan mqtt.Event, eventBacklog),
		quit:      make(chan struct{}),
	}

	screen := opts.Screen
	if screen == nil {
		s.Canvas = render.NewCanvas(render.Width, render.Height)
		screen = s.Canvas
	}
	s.Surface = render.NewSurface(screen)

	if err := s.build(); err != nil {
		k.Close()
		return nil, err
	}
	return s, nil
}

func (s *System) build() error {
	cfg := s.Config
	k := s.Kernel

	s.Counter = counter.New(s.Metrics)
	s.Display = counter.NewDisplay(s.Counter)
	s.Semaphore = k.NewBinarySemaphore()
	s.ModeTrigger = k.NewBinarySemaphore()

	modeA, err := s.buildCounterMode()
	if err != nil {
		return err
	}
	modeB, err := s.buildPipelineMode()
	if err != nil {
		return err
	}

	policy, err := dispatch.ParsePolicy(cfg.Dispatch.Policy)
	if err != nil {
		return err
	}
	s.Dispatcher = dispatch.New(dispatch.Config{
		Policy:      policy,
		Semaphore:   s.Semaphore,
		Notify:      s.Tasks.NotificationConsumer,
		ModeTrigger: s.ModeTrigger,
		Gates:       debounce.NewSet[input.Key](rtos.Tick(cfg.DebounceWindowTicks()), cfg.Input.SharedDebounce),
		Metrics:     s.Metrics,
	})

	s.Machine, err = mode.New(mode.Config{
		Sets:       []mode.TaskSet{modeA, modeB},
		Trigger:    s.ModeTrigger,
		PollPeriod: rtos.Tick(cfg.Mode.PollPeriodTicks),
		Metrics:    s.Metrics,
	})
	if err != nil {
		return fmt.Errorf("mode machine: %w", err)
	}
	s.Machine.OnTransition(s.onTransition)

	initial, err := ParseMode(cfg.Mode.Initial)
	if err != nil {
		return err
	}
	if err := s.Machine.Apply(initial); err != nil {
		return fmt.Errorf("apply mode %s: %w", initial, err)
	}
	s.Tracker.SetMode(initial.String())

	if s.Tasks.Mode, err = k.CreateTask("mode", rtos.PriorityHigh, s.Machine.Task(k)); err != nil {
		return err
	}

	s.Tasks.Render, err = k.CreateTask("render", rtos.PriorityMax, render.Driver(k, render.DriverConfig{
		Surface: s.Surface,
		Input:   s.input,
		Buttons: &input.Buffer{},
		Handle:  s.handleInput,
		HUD:     s.drawHUD,
		OnFrame: s.onFrame,
		Period:  rtos.Tick(cfg.Render.FramePeriodTicks),
		Metrics: s.Metrics,
	}))
	return err
}

// buildCounterMode creates the counter consumers, the blinkers and the reset
// timer. They form ModeA's task set.
func (s *System) buildCounterMode() (mode.TaskSet, error) {
	k := s.Kernel
	var set mode.TaskSet
	var err error

	s.Tasks.SemaphoreConsumer, err = k.CreateTask("semaphore-consumer", rtos.PriorityLow, counter.SemaphoreConsumer(s.Counter, s.Semaphore))
	if err != nil {
		return set, err
	}
	s.Tasks.NotificationConsumer, err = k.CreateTask("notification-consumer", rtos.PriorityLow, counter.NotificationConsumer(s.Counter))
	if err != nil {
		return set, err
	}
	set.Tasks = append(set.Tasks, s.Tasks.SemaphoreConsumer, s.Tasks.NotificationConsumer)

	// The first blinker sits right of centre, the next left, and so on.
	for i, ms := range s.Config.Render.BlinkPeriodsMs {
		period := k.Ticks(time.Duration(ms) * time.Millisecond)
		x := float64(render.Width/2 + render.Width/6)
		if i%2 == 1 {
			x = float64(render.Width/2 - render.Width/6)
		}
		layer := &render.CircleLayer{X: x, Y: render.Height / 2, R: render.CircleRadius, Color: render.Red}
		s.Surface.AddLayer(layer)

		name := fmt.Sprintf("blink-%dms", ms)
		t, err := k.CreateTask(name, rtos.PriorityLow, render.Blinker(k, s.Surface, layer, period))
		if err != nil {
			return set, err
		}
		s.Tasks.Blinkers = append(s.Tasks.Blinkers, t)
		set.Tasks = append(set.Tasks, t)
	}

	s.ResetTimer, err = k.CreateTimer("counter-reset", rtos.Tick(s.Config.Counter.ResetPeriodTicks), true, s.onResetTimer())
	if err != nil {
		return set, err
	}
	set.Timers = append(set.Timers, s.ResetTimer)
	return set, nil
}

// buildPipelineMode creates the producers and the aggregation consumer
// suspended. They form ModeB's task set.
func (s *System) buildPipelineMode() (mode.TaskSet, error) {
	k := s.Kernel
	pc := s.Config.Pipeline
	horizon := rtos.Tick(pc.HorizonTicks)
	var set mode.TaskSet

	q, err := pipeline.NewQueue(k, horizon, len(pc.Periods))
	if err != nil {
		return set, err
	}
	s.Queue = q
	s.Rows = pipeline.NewBuffer(len(pc.Periods))

	for i, p := range pc.Periods {
		tag := i + 1
		body := pipeline.Producer(k, q, pipeline.ProducerConfig{
			Tag:            tag,
			Period:         rtos.Tick(p),
			Horizon:        horizon,
			RebaseOnResume: pc.RebaseOnResume,
		}, s.Metrics)
		t, err := k.CreateTask(fmt.Sprintf("producer-%d", tag), rtos.PriorityLow, body, rtos.WithStartSuspended())
		if err != nil {
			return set, err
		}
		s.Tasks.Producers = append(s.Tasks.Producers, t)
		set.Tasks = append(set.Tasks, t)
	}

	layer := render.NewTextLayer(10, render.FontSize*4, render.Black)
	s.Surface.AddLayer(layer)
	s.Tasks.Consumer, err = k.CreateTask("consumer", rtos.PriorityHigh, pipeline.Consumer(k, pipeline.ConsumerConfig{
		Queue:   q,
		Buffer:  s.Rows,
		Surface: s.Surface,
		Layer:   layer,
		Period:  rtos.Tick(s.Config.Render.FramePeriodTicks),
		Metrics: s.Metrics,
		OnRows:  s.Tracker.SetRows,
	}), rtos.WithStartSuspended())
	if err != nil {
		return set, err
	}
	set.Tasks = append(set.Tasks, s.Tasks.Consumer)
	return set, nil
}

// ParseMode maps "A" or "B" to a mode.
func ParseMode(name string) (mode.Mode, error) {
	switch name {
	case "", "A", "a":
		return mode.ModeA, nil
	case "B", "b":
		return mode.ModeB, nil
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}

// StatusConfig is the part of cfg shown on the status page.
func StatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		TickRateHz:       cfg.TickRateHz,
		DebounceTicks:    cfg.DebounceWindowTicks(),
		SharedDebounce:   cfg.Input.SharedDebounce,
		Policy:           cfg.Dispatch.Policy,
		ResetPeriodTicks: cfg.Counter.ResetPeriodTicks,
		FramePeriodTicks: cfg.Render.FramePeriodTicks,
		PollPeriodTicks:  cfg.Mode.PollPeriodTicks,
		Periods:          append([]uint64(nil), cfg.Pipeline.Periods...),
		HorizonTicks:     cfg.Pipeline.HorizonTicks,
		HeartbeatMs:      (time.Duration(cfg.MQTT.HeartbeatS) * time.Second).Milliseconds(),
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
	}
}

// Quit returns a channel closed once the quit key was handled.
func (s *System) Quit() <-chan struct{} {
	return s.quit
}

func (s *System) requestQuit() {
	s.quitOnce.Do(func() {
		log.Printf("app: quit key pressed")
		close(s.quit)
	})
}

// Close stops every task and waits for them to return.
func (s *System) Close() {
	s.Kernel.Close()
}
