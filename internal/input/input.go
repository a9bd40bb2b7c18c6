// Package input provides the key/mouse input boundary with hardware and
// network implementations and a fake for testing.
package input

import (
	"strings"
	"sync"
)

// Key identifies a button.
type Key int

const (
	KeyA Key = iota // semaphore path
	KeyB            // notification path
	KeyE            // mode change
	KeyS            // alternate between paths
	KeyQ            // quit
	NumKeys
)

var keyNames = [NumKeys]string{"a", "b", "e", "s", "q"}

func (k Key) String() string {
	if k < 0 || k >= NumKeys {
		return "?"
	}
	return keyNames[k]
}

// ParseKey maps a key name such as "a" or "E" to a Key.
func ParseKey(s string) (Key, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range keyNames {
		if name == s {
			return Key(i), true
		}
	}
	return 0, false
}

// State is a snapshot of the pressed keys and the mouse.
type State struct {
	Keys       [NumKeys]bool
	MouseX     int
	MouseY     int
	MouseLeft  bool
	MouseRight bool
}

// Pressed reports whether k is down.
func (s State) Pressed(k Key) bool {
	if k < 0 || k >= NumKeys {
		return false
	}
	return s.Keys[k]
}

// Source delivers input state.
type Source interface {
	// FetchEvents pulls pending events into the source's snapshot. With
	// nonblocking set it returns at once when nothing is pending.
	FetchEvents(nonblocking bool) error

	// Snapshot returns the state after the last FetchEvents.
	Snapshot() State

	// Close releases input resources.
	Close() error
}

// Buffer holds the copy of the input state the render task works from. Both
// Update and Read make one non-blocking attempt at the lock.
type Buffer struct {
	mu    sync.Mutex
	state State
}

// Update copies src's snapshot into the buffer. It returns false, leaving the
// previous state in place, if the buffer is locked.
func (b *Buffer) Update(src Source) bool {
	if !b.mu.TryLock() {
		return false
	}
	b.state = src.Snapshot()
	b.mu.Unlock()
	return true
}

// Read returns the buffered state if the lock was free.
func (b *Buffer) Read() (State, bool) {
	if !b.mu.TryLock() {
		return State{}, false
	}
	s := b.state
	b.mu.Unlock()
	return s, true
}

// Multi merges several sources: a key is pressed if any source reports it,
// and the mouse comes from the first source.
type Multi struct {
	sources []Source
}

// NewMulti combines sources.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// FetchEvents fetches from every source and returns the first error.
func (m *Multi) FetchEvents(nonblocking bool) error {
	var first error
	for _, s := range m.sources {
		if err := s.FetchEvents(nonblocking); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Snapshot ORs the key states of all sources.
func (m *Multi) Snapshot() State {
	var out State
	for i, s := range m.sources {
		snap := s.Snapshot()
		if i == 0 {
			out = snap
			continue
		}
		for k := range out.Keys {
			out.Keys[k] = out.Keys[k] || snap.Keys[k]
		}
	}
	return out
}

// Close closes every source and returns the first error.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sources {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
