// Package status provides a thread-safe status tracker for the demo.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"
)

// Config contains the running configuration for display.
type Config struct {
	TickRateHz       int
	DebounceTicks    uint64
	SharedDebounce   bool
	Policy           string
	ResetPeriodTicks uint64
	FramePeriodTicks uint64
	PollPeriodTicks  uint64
	Periods          []uint64
	HorizonTicks     uint64
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
}

// TaskStatus is one task as shown on the status page.
type TaskStatus struct {
	Name     string
	Priority int
	State    string
}

// Counts are running totals since start.
type Counts struct {
	Transitions int
	Resets      int
}

// Snapshot is a point-in-time view of demo state.
// It is a value type; its slices are copies safe to use after the lock is released.
type Snapshot struct {
	RunID         string
	Mode          string
	Counter       uint32
	Tick          uint64
	FPS           int
	Tasks         []TaskStatus
	Rows          []string
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the demo started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable demo state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given run ID, start time and config.
func NewTracker(runID string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateFrame records the values shown on the last rendered frame.
// Called from the render driver once per frame.
func (t *Tracker) UpdateFrame(tick uint64, counter uint32, fps int) {
	t.mu.Lock()
	t.snap.Tick = tick
	t.snap.Counter = counter
	t.snap.FPS = fps
	t.mu.Unlock()
}

// SetMode sets the current mode without counting a transition.
func (t *Tracker) SetMode(mode string) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.mu.Unlock()
}

// RecordTransition sets the new mode and counts the transition.
func (t *Tracker) RecordTransition(mode string) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Counts.Transitions++
	t.mu.Unlock()
}

// RecordReset counts a counter reset.
func (t *Tracker) RecordReset() {
	t.mu.Lock()
	t.snap.Counts.Resets++
	t.mu.Unlock()
}

// SetTasks replaces the task list.
func (t *Tracker) SetTasks(tasks []TaskStatus) {
	cp := append([]TaskStatus(nil), tasks...)
	t.mu.Lock()
	t.snap.Tasks = cp
	t.mu.Unlock()
}

// SetRows replaces the aggregation rows.
func (t *Tracker) SetRows(rows []string) {
	cp := append([]string(nil), rows...)
	t.mu.Lock()
	t.snap.Rows = cp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the demo state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Tasks = append([]TaskStatus(nil), t.snap.Tasks...)
	s.Rows = append([]string(nil), t.snap.Rows...)
	s.Config.Periods = append([]uint64(nil), t.snap.Config.Periods...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
