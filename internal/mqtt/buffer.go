package mqtt

import (
	"log"
	"sync"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO that keeps the newest messages published
// while the broker is unreachable. Safe for concurrent use.
type outbox struct {
	mu      sync.Mutex
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped uint64
	warned  bool // overflow logged since last drain
}

func newOutbox(capacity int) *outbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &outbox{buf: make([]bufferedMsg, capacity)}
}

// push stores msg, overwriting the oldest message when full.
func (o *outbox) push(msg bufferedMsg) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.buf[o.head] = msg
	o.head = (o.head + 1) % len(o.buf)
	if o.count < len(o.buf) {
		o.count++
		return
	}
	o.dropped++
	if !o.warned {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.buf))
		o.warned = true
	}
}

// drain removes and returns every stored message, oldest first.
func (o *outbox) drain() []bufferedMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count == 0 {
		return nil
	}

	out := make([]bufferedMsg, o.count)
	start := (o.head - o.count + len(o.buf)) % len(o.buf)
	for i := range out {
		out[i] = o.buf[(start+i)%len(o.buf)]
		o.buf[(start+i)%len(o.buf)] = bufferedMsg{}
	}
	o.count = 0
	o.head = 0
	o.warned = false
	return out
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

func (o *outbox) droppedTotal() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
