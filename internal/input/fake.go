package input

import (
	"errors"
	"sync"
)

// Fake is a test double that replays scripted states. Each FetchEvents
// consumes the next state; when the script is exhausted the last state
// repeats. Press and Release override the script.
type Fake struct {
	mu      sync.Mutex
	states  []State
	index   int
	current State
	fetches int

	// FetchError, if set, is returned by FetchEvents.
	FetchError error

	closed bool
}

// NewFake creates a Fake with the given scripted states.
func NewFake(states ...State) *Fake {
	return &Fake{states: states}
}

// FetchEvents advances the script.
func (f *Fake) FetchEvents(nonblocking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchError != nil {
		return f.FetchError
	}
	if f.closed {
		return errors.New("input: fake closed")
	}
	f.fetches++
	if len(f.states) == 0 {
		return nil
	}
	f.current = f.states[f.index]
	if f.index < len(f.states)-1 {
		f.index++
	}
	return nil
}

// Snapshot returns the current state.
func (f *Fake) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Press holds k down until Release.
func (f *Fake) Press(k Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = nil
	f.current.Keys[k] = true
}

// Release lets k go.
func (f *Fake) Release(k Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = nil
	f.current.Keys[k] = false
}

// Fetches returns how many times FetchEvents succeeded.
func (f *Fake) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
