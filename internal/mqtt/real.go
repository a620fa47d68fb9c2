package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

const (
	// DefaultClientID is the MQTT client identifier.
	DefaultClientID = "ppd42-sensor"
	// DefaultBufferSize holds about an hour of 30 s readings.
	DefaultBufferSize = 120

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	Topic      string // base topic
	BufferSize int    // readings kept while disconnected
}

// RealPublisher publishes to an actual MQTT broker. Readings published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client        paho.Client
	readingsTopic string
	systemTopic   string

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one successful connection
	replaying bool // onConnect is flushing buf; new readings queue behind it
}

func newPublisher(cfg Config) *RealPublisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		readingsTopic: ReadingsTopic(cfg.Topic),
		systemTopic:   SystemTopic(cfg.Topic),
		buf:           newRingBuffer(cfg.BufferSize),
	}
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher is still returned;
// paho keeps retrying in the background and readings are buffered meanwhile.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: no broker configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	p := newPublisher(cfg)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", cfg.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect replays buffered messages oldest first. It runs on a paho
// goroutine. Readings published during the replay are buffered and sent
// after the older ones. If the connection drops mid-replay the unsent
// messages go back into the buffer for the next connect.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	p.replaying = true
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", p.Buffered())
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: publish reconnect event: %v", err)
		}
	}

	for {
		p.mu.Lock()
		pending := p.buf.drainAll()
		if len(pending) == 0 {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for i, msg := range pending {
			err := p.send(msg)
			if err == nil {
				continue
			}
			log.Printf("mqtt: replay to %s failed: %v", msg.topic, err)
			if !p.client.IsConnectionOpen() {
				p.requeue(pending[i:])
				return
			}
		}
	}
}

// requeue puts unsent messages back ahead of anything buffered since and
// ends the replay.
func (p *RealPublisher) requeue(unsent []bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newer := p.buf.drainAll()
	for _, msg := range unsent {
		p.buf.push(msg)
	}
	for _, msg := range newer {
		p.buf.push(msg)
	}
	p.replaying = false
}

// Publish sends a reading to the MQTT broker.
func (p *RealPublisher) Publish(r logic.Reading) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: readings arrive only every window, losing one is a visible gap.
	return p.publishOrBuffer(bufferedMsg{topic: p.readingsTopic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// publishOrBuffer sends msg, or buffers it while the connection is down or a
// replay is in progress. The check and the push happen under one lock so a
// message cannot slip in behind onConnect's final drain.
func (p *RealPublisher) publishOrBuffer(msg bufferedMsg) error {
	p.mu.Lock()
	if p.replaying || !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of readings waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		log.Printf("mqtt: discarding %d buffered readings", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
