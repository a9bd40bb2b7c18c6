package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	RunID         string     `json:"run_id"`
	Mode          string     `json:"mode"`
	Counter       uint32     `json:"counter"`
	Tick          uint64     `json:"tick"`
	FPS           int        `json:"fps"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Tasks         []TaskJSON `json:"tasks"`
	Rows          []string   `json:"rows"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Transitions int `json:"transitions"`
	Resets      int `json:"resets"`
}

// TaskJSON is the JSON representation of one task.
type TaskJSON struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	State    string `json:"state"`
}

// ConfigJSON is the JSON representation of the running config.
type ConfigJSON struct {
	TickRateHz       int      `json:"tick_rate_hz"`
	DebounceTicks    uint64   `json:"debounce_ticks"`
	SharedDebounce   bool     `json:"shared_debounce"`
	Policy           string   `json:"policy"`
	ResetPeriodTicks uint64   `json:"reset_period_ticks"`
	FramePeriodTicks uint64   `json:"frame_period_ticks"`
	PollPeriodTicks  uint64   `json:"poll_period_ticks"`
	Periods          []uint64 `json:"periods"`
	HorizonTicks     uint64   `json:"horizon_ticks"`
	HeartbeatMs      int64    `json:"heartbeat_ms"`
	Broker           string   `json:"broker"`
	HTTPAddr         string   `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := snap.Mode
	if mode == "" {
		mode = "UNKNOWN"
	}

	tasks := make([]TaskJSON, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks = append(tasks, TaskJSON{Name: t.Name, Priority: t.Priority, State: t.State})
	}
	rows := snap.Rows
	if rows == nil {
		rows = []string{}
	}

	return StatusInner{
		RunID:         snap.RunID,
		Mode:          mode,
		Counter:       snap.Counter,
		Tick:          snap.Tick,
		FPS:           snap.FPS,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions: snap.Counts.Transitions,
			Resets:      snap.Counts.Resets,
		},
		Tasks: tasks,
		Rows:  rows,
		Config: ConfigJSON{
			TickRateHz:       snap.Config.TickRateHz,
			DebounceTicks:    snap.Config.DebounceTicks,
			SharedDebounce:   snap.Config.SharedDebounce,
			Policy:           snap.Config.Policy,
			ResetPeriodTicks: snap.Config.ResetPeriodTicks,
			FramePeriodTicks: snap.Config.FramePeriodTicks,
			PollPeriodTicks:  snap.Config.PollPeriodTicks,
			Periods:          snap.Config.Periods,
			HorizonTicks:     snap.Config.HorizonTicks,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
