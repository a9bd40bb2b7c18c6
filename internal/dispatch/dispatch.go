// Package dispatch routes debounced key presses to the demo's wake-up
// primitives.
package dispatch

import (
	"fmt"
	"sync/atomic"

	"github.com/sweeney/tickdemo/internal/debounce"
	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/rtos"
)

// Policy selects how increment keys map to primitives.
type Policy string

const (
	// PolicyKeyed gives the semaphore on A and notifies on B.
	PolicyKeyed Policy = "keyed"
	// PolicyAlternate also lets S alternate between the two paths.
	PolicyAlternate Policy = "alternate"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyKeyed, PolicyAlternate:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown dispatch policy %q", s)
}

// Signal names a wake-up the dispatcher fired.
type Signal string

const (
	SignalSemaphore    Signal = "semaphore"
	SignalNotification Signal = "notification"
	SignalMode         Signal = "mode"
	SignalQuit         Signal = "quit"
)

// Config wires a Dispatcher.
type Config struct {
	Policy Policy
	// Semaphore wakes the semaphore-driven consumer.
	Semaphore *rtos.Semaphore
	// Notify is the notification-driven consumer.
	Notify *rtos.Task
	// ModeTrigger is polled by the mode state machine.
	ModeTrigger *rtos.Semaphore
	Gates       *debounce.Set[input.Key]
	Metrics     *metrics.Metrics
}

// Dispatcher turns key state into signals. Handle is called from the render
// task only.
type Dispatcher struct {
	cfg Config

	// toggle picks the path for the next S press. Its load and store are
	// separate, so concurrent callers could pick the same path; that only
	// affects which primitive fires, never which counter is incremented.
	toggle atomic.Uint32
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Policy == "" {
		cfg.Policy = PolicyKeyed
	}
	return &Dispatcher{cfg: cfg}
}

// Policy returns the active policy.
func (d *Dispatcher) Policy() Policy {
	return d.cfg.Policy
}

// Toggle returns the path taken by the last S press: 0 semaphore, 1 notification.
func (d *Dispatcher) Toggle() uint32 {
	return d.toggle.Load()
}

// Handle fires a signal for every held key whose debounce gate accepts now.
// It returns the signals that were delivered.
func (d *Dispatcher) Handle(s input.State, now rtos.Tick) []Signal {
	var fired []Signal

	if d.accept(s, input.KeyA, now) && d.giveSemaphore() {
		fired = append(fired, SignalSemaphore)
	}
	if d.accept(s, input.KeyB, now) && d.notify() {
		fired = append(fired, SignalNotification)
	}
	if d.cfg.Policy == PolicyAlternate && d.accept(s, input.KeyS, now) {
		next := (d.toggle.Load() + 1) % 2
		d.toggle.Store(next)
		switch next {
		case 0:
			if d.giveSemaphore() {
				fired = append(fired, SignalSemaphore)
			}
		case 1:
			if d.notify() {
				fired = append(fired, SignalNotification)
			}
		}
	}
	if d.accept(s, input.KeyE, now) && d.cfg.ModeTrigger != nil && d.cfg.ModeTrigger.Give() {
		fired = append(fired, SignalMode)
	}
	if d.accept(s, input.KeyQ, now) {
		fired = append(fired, SignalQuit)
	}

	for _, sig := range fired {
		d.cfg.Metrics.RecordSignal(string(sig))
	}
	return fired
}

// accept consults the gate only for held keys.
func (d *Dispatcher) accept(s input.State, k input.Key, now rtos.Tick) bool {
	if !s.Pressed(k) {
		return false
	}
	if d.cfg.Gates == nil {
		return true
	}
	return d.cfg.Gates.Accept(k, now)
}

func (d *Dispatcher) giveSemaphore() bool {
	if d.cfg.Semaphore == nil {
		return false
	}
	return d.cfg.Semaphore.Give()
}

func (d *Dispatcher) notify() bool {
	if d.cfg.Notify == nil {
		return false
	}
	d.cfg.Notify.Notify()
	return true
}
