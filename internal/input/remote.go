package input

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// DefaultKeyTopic is the MQTT topic carrying remote key events.
const DefaultKeyTopic = "tickdemo/input/keys"

// Subscriber is the part of an MQTT client a remote key source needs.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
	Unsubscribe(topic string) error
}

// KeyMessage is the payload of a remote key event.
type KeyMessage struct {
	Key     string `json:"key"`
	Pressed bool   `json:"pressed"`
}

// MQTTSource turns key messages received over MQTT into input state. Messages
// arrive on the client's goroutine and become visible at the next
// FetchEvents.
type MQTTSource struct {
	sub   Subscriber
	topic string

	mu      sync.Mutex
	pending State
	current State
}

// NewMQTTSource subscribes to topic.
func NewMQTTSource(sub Subscriber, topic string) (*MQTTSource, error) {
	if topic == "" {
		topic = DefaultKeyTopic
	}
	s := &MQTTSource{sub: sub, topic: topic}
	if err := sub.Subscribe(topic, s.handle); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return s, nil
}

func (s *MQTTSource) handle(payload []byte) {
	var msg KeyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("input: bad key message %q: %v", payload, err)
		return
	}
	k, ok := ParseKey(msg.Key)
	if !ok {
		log.Printf("input: unknown key %q", msg.Key)
		return
	}

	s.mu.Lock()
	s.pending.Keys[k] = msg.Pressed
	s.mu.Unlock()
}

// FetchEvents publishes received key changes to the snapshot.
func (s *MQTTSource) FetchEvents(nonblocking bool) error {
	s.mu.Lock()
	s.current = s.pending
	s.mu.Unlock()
	return nil
}

// Snapshot returns the state as of the last FetchEvents.
func (s *MQTTSource) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close unsubscribes from the key topic.
func (s *MQTTSource) Close() error {
	return s.sub.Unsubscribe(s.topic)
}
