package rtos

import (
	"fmt"
	"log"
)

// Timer is a software timer. Its callback runs on the goroutine advancing the
// kernel and must not block.
type Timer struct {
	k          *Kernel
	name       string
	period     Tick
	autoReload bool
	cb         func(*Timer)

	// Guarded by k.mu.
	active bool
	expiry Tick
	fired  uint64
}

// CreateTimer creates a stopped timer. With autoReload the timer re-arms
// itself after every expiry, otherwise it fires once per Start.
func (k *Kernel) CreateTimer(name string, period Tick, autoReload bool, cb func(*Timer)) (*Timer, error) {
	if period == 0 {
		return nil, fmt.Errorf("create timer %q: %w", name, ErrInvalidPeriod)
	}
	if cb == nil {
		return nil, fmt.Errorf("create timer %q: %w", name, ErrNilFunc)
	}
	t := &Timer{k: k, name: name, period: period, autoReload: autoReload, cb: cb}

	k.mu.Lock()
	k.timers = append(k.timers, t)
	k.mu.Unlock()
	return t, nil
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Period returns the timer period in ticks.
func (t *Timer) Period() Tick {
	return t.period
}

// Start arms the timer to expire one period from now. Starting an active
// timer restarts its period.
func (t *Timer) Start() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.active = true
	t.expiry = t.k.now + t.period
}

// Stop disarms the timer. The timer keeps its configuration and can be
// started again.
func (t *Timer) Stop() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.active = false
}

// IsActive reports whether the timer is armed.
func (t *Timer) IsActive() bool {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.active
}

// Fired returns how many times the callback has been scheduled.
func (t *Timer) Fired() uint64 {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.fired
}

func (t *Timer) fire() {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("rtos: timer %s callback panicked: %v", t.name, p)
		}
	}()
	t.cb(t)
}

// dueTimers collects expired timers and re-arms or disarms them.
// Caller holds k.mu.
func (k *Kernel) dueTimers() []*Timer {
	var due []*Timer
	for _, t := range k.timers {
		if !t.active || t.expiry > k.now {
			continue
		}
		t.fired++
		due = append(due, t)
		if t.autoReload {
			t.expiry += t.period
		} else {
			t.active = false
		}
	}
	return due
}
