package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// OutboxCapacity is how many messages are kept while disconnected.
const OutboxCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in an outbox and replayed, oldest first,
// once it is back. It also carries subscriptions for remote input.
type RealPublisher struct {
	client   paho.Client
	clientID string
	outbox   *outbox

	mu        sync.Mutex
	subs      map[string]func([]byte)
	connected bool
	connects  int
}

// NewClientID returns a unique client ID for one run.
func NewClientID() string {
	return "tickdemo-" + uuid.NewString()
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// does not answer within the connect timeout the publisher is still
// returned; it keeps retrying in the background and buffers until then.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		clientID: NewClientID(),
		outbox:   newOutbox(OutboxCapacity),
		subs:     make(map[string]func([]byte)),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(p.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload(time.Now())), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, buffering", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// ClientID returns the MQTT client ID.
func (p *RealPublisher) ClientID() string {
	return p.clientID
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	subs := make(map[string]func([]byte), len(p.subs))
	for topic, h := range p.subs {
		subs[topic] = h
	}
	p.mu.Unlock()

	for topic, h := range subs {
		if err := p.subscribe(topic, h); err != nil {
			log.Printf("mqtt: resubscribe %s: %v", topic, err)
		}
	}

	msgs := p.outbox.drain()
	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for the connection.
func (p *RealPublisher) Buffered() int {
	return p.outbox.len()
}

// Dropped returns how many buffered messages were overwritten.
func (p *RealPublisher) Dropped() uint64 {
	return p.outbox.droppedTotal()
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.IsConnected() {
		p.outbox.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends a demo event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(TopicEvents, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// Subscribe registers handler for topic. The subscription is renewed after
// every reconnect.
func (p *RealPublisher) Subscribe(topic string, handler func([]byte)) error {
	p.mu.Lock()
	p.subs[topic] = handler
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	return p.subscribe(topic, handler)
}

func (p *RealPublisher) subscribe(topic string, handler func([]byte)) error {
	token := p.client.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		handler(m.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe drops the subscription for topic.
func (p *RealPublisher) Unsubscribe(topic string) error {
	p.mu.Lock()
	delete(p.subs, topic)
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	token := p.client.Unsubscribe(topic)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("unsubscribe %s timeout", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.outbox.len(); n > 0 {
		log.Printf("mqtt: closing with %d unsent messages", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
