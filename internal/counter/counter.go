// Package counter provides the shared button counter and the tasks that
// increment and reset it.
package counter

import (
	"sync"

	"github.com/sweeney/tickdemo/internal/metrics"
)

// Signal sources that drive increments.
const (
	SourceSemaphore    = "semaphore"
	SourceNotification = "notification"
)

// Counter is a mutex-guarded counter. Every operation makes a single
// non-blocking attempt at the lock and is skipped if the lock is busy: under
// contention an increment, reset or read can be lost. Callers treat a false
// result as "did not happen this cycle".
type Counter struct {
	mu      sync.Mutex
	value   uint32
	metrics *metrics.Metrics
}

// New creates a zeroed counter. m may be nil.
func New(m *metrics.Metrics) *Counter {
	return &Counter{metrics: m}
}

// Increment adds one, attributing it to source.
func (c *Counter) Increment(source string) bool {
	if !c.mu.TryLock() {
		c.metrics.RecordSkipped("increment")
		return false
	}
	c.value++
	c.mu.Unlock()
	c.metrics.RecordIncrement(source)
	return true
}

// Reset sets the value to zero.
func (c *Counter) Reset() bool {
	if !c.mu.TryLock() {
		c.metrics.RecordSkipped("reset")
		return false
	}
	c.value = 0
	c.mu.Unlock()
	c.metrics.RecordReset()
	return true
}

// Read returns the value if the lock was free.
func (c *Counter) Read() (uint32, bool) {
	if !c.mu.TryLock() {
		c.metrics.RecordSkipped("read")
		return 0, false
	}
	v := c.value
	c.mu.Unlock()
	return v, true
}

// Display remembers the last value read so a render path never blocks and
// never shows a gap. Not safe for concurrent use; it belongs to one task.
type Display struct {
	c    *Counter
	last uint32
}

// NewDisplay creates a display over c.
func NewDisplay(c *Counter) *Display {
	return &Display{c: c}
}

// Value returns the current value, or the previously shown one if the
// counter was busy.
func (d *Display) Value() uint32 {
	if v, ok := d.c.Read(); ok {
		d.last = v
	}
	return d.last
}

// Last returns the value shown by the previous Value call.
func (d *Display) Last() uint32 {
	return d.last
}
