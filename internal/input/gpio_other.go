//go:build !linux

package input

import "errors"

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(cfg GPIOConfig) (*GPIOSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// FetchEvents is not implemented on non-Linux platforms.
func (s *GPIOSource) FetchEvents(nonblocking bool) error {
	return errors.New("gpio: not supported")
}

// Snapshot returns an empty state.
func (s *GPIOSource) Snapshot() State {
	return State{}
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSource) Close() error {
	return nil
}
