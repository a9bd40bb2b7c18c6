// Package debounce suppresses repeated detections of one physical edge.
// This package has no I/O: the current tick is always passed in.
package debounce

import (
	"sync"
	"sync/atomic"

	"github.com/sweeney/tickdemo/internal/rtos"
)

// DefaultWindowMs is the debounce window used by the demo keys.
const DefaultWindowMs = 200

// Gate rate-limits an edge-triggered signal. An edge at tick now is accepted
// only if now - last > window, and acceptance stores now as the new last.
// The zero value of last is tick 0, so edges within the first window ticks
// after boot are rejected.
type Gate struct {
	window rtos.Tick
	last   atomic.Uint64
}

// NewGate creates a gate with the given window in ticks.
func NewGate(window rtos.Tick) *Gate {
	return &Gate{window: window}
}

// Window returns the debounce window in ticks.
func (g *Gate) Window() rtos.Tick {
	return g.window
}

// Accept reports whether an edge at now passes the gate. Concurrent callers
// accept at most one edge per window.
func (g *Gate) Accept(now rtos.Tick) bool {
	for {
		last := g.last.Load()
		if uint64(now) < last || uint64(now)-last <= uint64(g.window) {
			return false
		}
		if g.last.CompareAndSwap(last, uint64(now)) {
			return true
		}
	}
}

// LastAccepted returns the tick of the last accepted edge.
func (g *Gate) LastAccepted() rtos.Tick {
	return rtos.Tick(g.last.Load())
}

// Set hands out gates per key. In shared mode every key maps to the same
// gate, so a press of one key suppresses a different key inside the window.
type Set[K comparable] struct {
	window rtos.Tick
	shared *Gate

	mu    sync.Mutex
	gates map[K]*Gate
}

// NewSet creates a gate set. With shared set, all keys share one gate.
func NewSet[K comparable](window rtos.Tick, shared bool) *Set[K] {
	s := &Set[K]{window: window, gates: make(map[K]*Gate)}
	if shared {
		s.shared = NewGate(window)
	}
	return s
}

// Gate returns the gate for key.
func (s *Set[K]) Gate(key K) *Gate {
	if s.shared != nil {
		return s.shared
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[key]
	if !ok {
		g = NewGate(s.window)
		s.gates[key] = g
	}
	return g
}

// Accept runs key's gate.
func (s *Set[K]) Accept(key K, now rtos.Tick) bool {
	return s.Gate(key).Accept(now)
}

// Shared reports whether all keys share one gate.
func (s *Set[K]) Shared() bool {
	return s.shared != nil
}
