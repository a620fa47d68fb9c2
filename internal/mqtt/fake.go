package mqtt

import (
	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// FakeMessage is one message as it would have reached the broker.
type FakeMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher formats readings and events like RealPublisher but keeps
// them in memory. Not safe for concurrent use.
type FakePublisher struct {
	// Topic is the base topic; DefaultTopic when empty.
	Topic string

	Readings       []logic.Reading
	Payloads       [][]byte // reading payloads, in publish order
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Messages holds every message in publish order with its topic.
	Messages []FakeMessage

	PublishError       error // returned by Publish
	PublishSystemError error // returned by PublishSystem

	Closed    bool
	Connected bool // returned by IsConnected
}

// NewFakePublisher creates a FakePublisher on DefaultTopic.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) base() string {
	if f.Topic == "" {
		return DefaultTopic
	}
	return f.Topic
}

// Publish formats and records the reading.
func (f *FakePublisher) Publish(r logic.Reading) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(r)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, r)
	f.Payloads = append(f.Payloads, payload)
	f.Messages = append(f.Messages, FakeMessage{Topic: ReadingsTopic(f.base()), Payload: payload})
	return nil
}

// PublishSystem formats and records the lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	f.Messages = append(f.Messages, FakeMessage{Topic: SystemTopic(f.base()), Payload: payload, Retained: event.Retained})
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset returns the fake to its initial state, keeping Topic.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{Topic: f.Topic}
}
