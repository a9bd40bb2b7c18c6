package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatPayloadModeChanged(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      EventModeChanged,
		Tick:      3000,
		From:      "A",
		Mode:      "B",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"demo":{"timestamp":"2026-02-02T22:18:12Z","event":"MODE_CHANGED","tick":3000,"mode":"B","from":"A","counter":0}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadCounterReset(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.FixedZone("CET", 3600)),
		Type:      EventCounterReset,
		Tick:      15000,
		Counter:   5,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Demo.Timestamp != "2026-02-02T21:18:12Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Demo.Timestamp)
	}
	if parsed.Demo.Event != "COUNTER_RESET" {
		t.Errorf("unexpected event: %s", parsed.Demo.Event)
	}
	if parsed.Demo.Counter != 5 {
		t.Errorf("unexpected counter: %d", parsed.Demo.Counter)
	}
	if strings.Contains(string(payload), `"mode"`) {
		t.Errorf("COUNTER_RESET should omit mode: %s", payload)
	}
}

func TestTopics(t *testing.T) {
	if TopicEvents != "tickdemo/events" {
		t.Errorf("unexpected topic: %s", TopicEvents)
	}
	if TopicSystem != "tickdemo/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		event    SystemEvent
		expected string
	}{
		{
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: "RECONNECTED"},
			`{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`,
		},
		{
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: "SHUTDOWN", Reason: "SIGTERM"},
			`{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.event.Event, func(t *testing.T) {
			payload, err := FormatSystemPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.expected {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.expected)
			}
		})
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestWillPayload(t *testing.T) {
	payload := WillPayload(time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC))
	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestNewClientIDIsUnique(t *testing.T) {
	a, b := NewClientID(), NewClientID()
	if !strings.HasPrefix(a, "tickdemo-") {
		t.Errorf("unexpected client id: %s", a)
	}
	if a == b {
		t.Error("client ids should differ between runs")
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	events := []Event{
		{Timestamp: time.Now(), Type: EventCounterReset, Counter: 3},
		{Timestamp: time.Now(), Type: EventModeChanged, From: "A", Mode: "B"},
	}
	for _, e := range events {
		if err := f.Publish(e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := f.EventTypes()
	if len(got) != 2 || got[0] != EventCounterReset || got[1] != EventModeChanged {
		t.Errorf("unexpected event order: %v", got)
	}
	if len(f.Payloads) != 2 {
		t.Errorf("expected 2 payloads, got %d", len(f.Payloads))
	}
	if f.Events[1].Mode != "B" {
		t.Errorf("event data not preserved: %+v", f.Events[1])
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("boom")
	f.PublishSystemError = errors.New("bang")

	if err := f.Publish(Event{Type: EventCounterReset}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	names := f.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "HEARTBEAT" {
		t.Errorf("unexpected system events: %v", names)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("first event should have Retained=true")
	}
	if f.SystemEvents[1].Retained {
		t.Error("second event should have Retained=false")
	}
}

func TestFakePublisherSubscribe(t *testing.T) {
	f := NewFakePublisher()
	var got string
	f.Subscribe("keys", func(b []byte) { got = string(b) })

	if !f.Deliver("keys", []byte("hello")) {
		t.Fatal("expected a subscriber for keys")
	}
	if got != "hello" {
		t.Errorf("handler got %q", got)
	}

	f.Unsubscribe("keys")
	if f.Deliver("keys", []byte("again")) {
		t.Error("delivered after unsubscribe")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(Event{Type: EventCounterReset})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()

	if len(f.Events) != 0 || len(f.SystemEvents) != 0 || f.Closed || f.IsConnected() {
		t.Errorf("reset did not clear state: %+v", f)
	}
	if err := f.Publish(Event{Type: EventModeChanged}); err != nil {
		t.Errorf("publisher not reusable after reset: %v", err)
	}
}
