package debounce

import "github.com/sweeney/tickdemo/internal/rtos"

// Level filters contact bounce on a sampled input line. A new level is only
// reported stable after it has been observed continuously for hold ticks.
type Level struct {
	hold rtos.Tick

	// Current stable (debounced) level
	Stable bool
	// Level awaiting confirmation
	Pending bool
	// Whether a change is awaiting confirmation
	HasPending bool
	// Tick when the pending level was first observed
	PendingSince rtos.Tick
	// Whether a stable level has been established
	Baselined bool
}

// NewLevel creates a filter that requires hold ticks of stability.
func NewLevel(hold rtos.Tick) *Level {
	return &Level{hold: hold}
}

// Process takes a raw sample and returns true when the stable level changes.
// Establishing the first baseline is not a change.
func (l *Level) Process(raw bool, now rtos.Tick) bool {
	if !l.Baselined {
		if !l.HasPending || l.Pending != raw {
			// Start observing, or restart after a change during baseline
			l.Pending = raw
			l.HasPending = true
			l.PendingSince = now
		}
		if now-l.PendingSince >= l.hold {
			l.Stable = raw
			l.Baselined = true
			l.HasPending = false
		}
		return false
	}

	if raw == l.Stable {
		l.HasPending = false
		return false
	}

	if !l.HasPending || l.Pending != raw {
		l.Pending = raw
		l.HasPending = true
		l.PendingSince = now
	}

	if now-l.PendingSince >= l.hold {
		l.Stable = raw
		l.HasPending = false
		return true
	}
	return false
}
