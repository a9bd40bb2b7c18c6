// Package mode switches the demo between operating modes. Each mode owns a
// fixed set of tasks and timers; only the current mode's set is scheduled.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/rtos"
)

// DefaultPollPeriod is how often the machine checks its trigger, in ticks.
const DefaultPollPeriod rtos.Tick = 300

// Mode identifies an operating mode.
type Mode int

const (
	ModeA Mode = iota
	ModeB
)

func (m Mode) String() string {
	switch m {
	case ModeA:
		return "A"
	case ModeB:
		return "B"
	default:
		return fmt.Sprintf("mode-%d", int(m))
	}
}

var (
	// ErrNoModes is returned when a machine is built without task sets.
	ErrNoModes = errors.New("mode: no task sets")
	// ErrSharedMember is returned when a task or timer belongs to two modes.
	ErrSharedMember = errors.New("mode: task sets are not disjoint")
	// ErrNoTrigger is returned by the machine task when it has nothing to poll.
	ErrNoTrigger = errors.New("mode: no trigger semaphore")
)

// TaskSet is what one mode owns. The machine holds handles only; it never
// deletes tasks or timers.
type TaskSet struct {
	Tasks  []*rtos.Task
	Timers []*rtos.Timer
}

// Config configures a Machine. Sets is indexed by Mode.
type Config struct {
	Sets       []TaskSet
	Trigger    *rtos.Semaphore
	PollPeriod rtos.Tick
	Metrics    *metrics.Metrics
}

// Observer is called after each completed transition.
type Observer func(from, to Mode)

// Machine is the mode state machine.
type Machine struct {
	cfg Config

	mu        sync.Mutex
	current   Mode
	observers []Observer
}

// New validates the task sets and creates a machine in ModeA. Call Apply
// before starting the machine task.
func New(cfg Config) (*Machine, error) {
	if len(cfg.Sets) == 0 {
		return nil, ErrNoModes
	}
	if cfg.PollPeriod == 0 {
		cfg.PollPeriod = DefaultPollPeriod
	}

	tasks := make(map[*rtos.Task]Mode)
	timers := make(map[*rtos.Timer]Mode)
	for i, set := range cfg.Sets {
		for _, t := range set.Tasks {
			if prev, ok := tasks[t]; ok {
				return nil, fmt.Errorf("task %s in modes %s and %s: %w", t.Name(), prev, Mode(i), ErrSharedMember)
			}
			tasks[t] = Mode(i)
		}
		for _, tm := range set.Timers {
			if prev, ok := timers[tm]; ok {
				return nil, fmt.Errorf("timer %s in modes %s and %s: %w", tm.Name(), prev, Mode(i), ErrSharedMember)
			}
			timers[tm] = Mode(i)
		}
	}
	return &Machine{cfg: cfg}, nil
}

// Count returns the number of modes.
func (m *Machine) Count() int {
	return len(m.cfg.Sets)
}

// Current returns the current mode.
func (m *Machine) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnTransition registers an observer.
func (m *Machine) OnTransition(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// Apply makes initial the current mode: every other set is suspended and
// its timers stopped, then initial's tasks are resumed and its timers
// started.
func (m *Machine) Apply(initial Mode) error {
	if int(initial) < 0 || int(initial) >= len(m.cfg.Sets) {
		return fmt.Errorf("apply mode %s: out of range", initial)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cfg.Sets {
		if Mode(i) != initial {
			m.leave(Mode(i))
		}
	}
	m.enter(initial)
	m.current = initial
	m.cfg.Metrics.SetMode(int(initial))
	log.Printf("mode: starting in mode %s", initial)
	return nil
}

// Transition moves to the next mode and returns it. The outgoing set is
// suspended and its timers stopped before the incoming set is resumed and
// its timers started. Observers run after the switch is complete.
func (m *Machine) Transition() Mode {
	m.mu.Lock()
	from := m.current
	to := Mode((int(from) + 1) % len(m.cfg.Sets))
	m.leave(from)
	m.enter(to)
	m.current = to
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	m.cfg.Metrics.RecordTransition(int(to))
	log.Printf("mode: %s -> %s", from, to)
	for _, o := range observers {
		o(from, to)
	}
	return to
}

// leave and enter require m.mu.
func (m *Machine) leave(md Mode) {
	set := m.cfg.Sets[md]
	for _, t := range set.Tasks {
		t.Suspend()
		m.cfg.Metrics.SetTaskSuspended(t.Name(), true)
	}
	for _, tm := range set.Timers {
		tm.Stop()
	}
}

func (m *Machine) enter(md Mode) {
	set := m.cfg.Sets[md]
	for _, t := range set.Tasks {
		t.Resume()
		m.cfg.Metrics.SetTaskSuspended(t.Name(), false)
	}
	for _, tm := range set.Timers {
		tm.Start()
	}
}

// Task returns the machine's task body: every PollPeriod ticks it checks
// the trigger without waiting and transitions if it was given.
func (m *Machine) Task(k *rtos.Kernel) rtos.TaskFunc {
	return func(ctx context.Context, t *rtos.Task) error {
		if m.cfg.Trigger == nil {
			return ErrNoTrigger
		}
		lastWake := k.Now()
		for {
			if err := k.DelayUntil(ctx, t, &lastWake, m.cfg.PollPeriod); err != nil {
				return err
			}
			if m.cfg.Trigger.TryTake() {
				m.Transition()
			}
		}
	}
}
