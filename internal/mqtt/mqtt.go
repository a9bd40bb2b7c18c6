// Package mqtt publishes demo events to an MQTT broker, with a fake for
// testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicEvents is the MQTT topic for demo events.
const TopicEvents = "tickdemo/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "tickdemo/system"

// EventType identifies a demo event.
type EventType string

const (
	EventModeChanged  EventType = "MODE_CHANGED"
	EventCounterReset EventType = "COUNTER_RESET"
)

// Event is a state change inside the demo.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Tick      uint64
	Mode      string // MODE_CHANGED: the new mode
	From      string // MODE_CHANGED: the previous mode
	Counter   uint32 // COUNTER_RESET: value before the reset
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a demo event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for demo events.
type Payload struct {
	Demo EventPayload `json:"demo"`
}

// EventPayload contains the demo event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Tick      uint64 `json:"tick"`
	Mode      string `json:"mode,omitempty"`
	From      string `json:"from,omitempty"`
	Counter   uint32 `json:"counter"`
}

// FormatPayload creates the JSON payload for a demo event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Demo: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Tick:      event.Tick,
			Mode:      event.Mode,
			From:      event.From,
			Counter:   event.Counter,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the
// connection drops without a clean disconnect.
func WillPayload(now time.Time) []byte {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	return payload
}
