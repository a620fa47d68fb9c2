package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

func testReading() logic.Reading {
	return logic.Reading{
		Seq:       7,
		Window:    30 * time.Second,
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		PM10: logic.ChannelReading{
			Channel:       logic.ChannelPM10,
			LowMicros:     30000,
			Ratio:         0.1,
			Concentration: 52.5,
			UGM3:          0.75,
			Pulses:        12,
		},
		PM25: logic.ChannelReading{
			Channel:       logic.ChannelPM25,
			LowMicros:     45000000,
			Ratio:         100,
			Clamped:       true,
			Concentration: 10,
			UGM3:          0.25,
			Spurious:      2,
			Restarted:     1,
		},
	}
}

func TestTopics(t *testing.T) {
	if got := ReadingsTopic(DefaultTopic); got != "environment/dust/ppd42/readings" {
		t.Errorf("readings topic: got %s", got)
	}
	if got := SystemTopic(DefaultTopic); got != "environment/dust/ppd42/system" {
		t.Errorf("system topic: got %s", got)
	}
	if got := ReadingsTopic("home/lounge/dust"); got != "home/lounge/dust/readings" {
		t.Errorf("custom readings topic: got %s", got)
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testReading())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed ReadingPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Timestamp)
	}
	if parsed.Seq != 7 {
		t.Errorf("seq: got %d, want 7", parsed.Seq)
	}
	if parsed.WindowSeconds != 30 {
		t.Errorf("window_s: got %v, want 30", parsed.WindowSeconds)
	}
	if parsed.PM10Conc != 52.5 || parsed.PM25Conc != 10 {
		t.Errorf("concentrations: got %v/%v", parsed.PM10Conc, parsed.PM25Conc)
	}
	if parsed.BandUGM3 != 0.5 {
		t.Errorf("band: got %v, want 0.5", parsed.BandUGM3)
	}
	if parsed.Diagnostics.PM10.Pulses != 12 {
		t.Errorf("PM1.0 pulses: got %d, want 12", parsed.Diagnostics.PM10.Pulses)
	}
	if !parsed.Diagnostics.PM25.Clamped {
		t.Error("PM2.5 clamped: got false, want true")
	}
	if parsed.Diagnostics.PM25.Spurious != 2 || parsed.Diagnostics.PM25.Restarted != 1 {
		t.Errorf("PM2.5 edges: got %+v", parsed.Diagnostics.PM25)
	}
}

func TestFormatPayloadFlattensRecord(t *testing.T) {
	payload, err := FormatPayload(testReading())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"PM1.0_conc", "PM2.5_conc", "PM1.0_ugm3", "PM1.0-2.5_ugm3", "PM2.5_ugm3"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	r := testReading()
	loc := time.FixedZone("UTC+2", 2*60*60)
	r.Timestamp = time.Date(2026, 2, 3, 12, 0, 0, 0, loc)

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed ReadingPayload
	json.Unmarshal(payload, &parsed)
	if parsed.Timestamp != "2026-02-03T10:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(f.Readings))
	}
	if f.Readings[0].Seq != 7 {
		t.Errorf("unexpected seq: %d", f.Readings[0].Seq)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.Publish(testReading()); err == nil {
		t.Error("expected error")
	}
	if len(f.Readings) != 0 {
		t.Errorf("expected no recorded readings, got %d", len(f.Readings))
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	event := SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "SIGINT", Retained: true}
	if err := f.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.SystemEvents))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("expected retained flag to be recorded")
	}

	f.PublishSystemError = errors.New("simulated error")
	if err := f.PublishSystem(event); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(testReading())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Readings) != 0 || len(f.Payloads) != 0 {
		t.Error("expected readings cleared")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected system events cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected lifecycle flags cleared")
	}
}

func TestNewRealPublisherRequiresBroker(t *testing.T) {
	if _, err := NewRealPublisher(Config{}); err == nil {
		t.Error("expected error without broker")
	}
}

func TestFakePublisherRoutesTopics(t *testing.T) {
	f := NewFakePublisher()
	f.Topic = "lab/dust"

	if err := f.Publish(testReading()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(f.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(f.Messages))
	}
	if f.Messages[0].Topic != "lab/dust/readings" || f.Messages[0].Retained {
		t.Errorf("reading message: got topic %q retained %v", f.Messages[0].Topic, f.Messages[0].Retained)
	}
	if f.Messages[1].Topic != "lab/dust/system" || !f.Messages[1].Retained {
		t.Errorf("system message: got topic %q retained %v", f.Messages[1].Topic, f.Messages[1].Retained)
	}

	f.Reset()
	if f.Topic != "lab/dust" || len(f.Messages) != 0 {
		t.Errorf("Reset: got topic %q and %d messages", f.Topic, len(f.Messages))
	}
}
