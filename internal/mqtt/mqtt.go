// Package mqtt publishes readings and lifecycle events to an MQTT broker,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
	"github.com/sweeney/ppd42-sensor/internal/report"
)

// DefaultTopic is the base topic; readings and system events are published
// below it.
const DefaultTopic = "environment/dust/ppd42"

// ReadingsTopic returns the topic readings are published to.
func ReadingsTopic(base string) string {
	return base + "/readings"
}

// SystemTopic returns the topic lifecycle events are published to.
func SystemTopic(base string) string {
	return base + "/system"
}

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends one window's reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(r logic.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReadingPayload is the MQTT message for one reading: the canonical record
// fields plus window metadata and per-channel diagnostics.
type ReadingPayload struct {
	Timestamp     string  `json:"timestamp"`
	Seq           uint64  `json:"seq"`
	WindowSeconds float64 `json:"window_s"`
	report.Record
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Diagnostics holds the raw per-channel measurements behind a reading.
type Diagnostics struct {
	PM10 ChannelDiagnostics `json:"PM1.0"`
	PM25 ChannelDiagnostics `json:"PM2.5"`
}

// ChannelDiagnostics is the raw measurement for one channel.
type ChannelDiagnostics struct {
	LowMicros uint64  `json:"low_us"`
	Ratio     float64 `json:"ratio"`
	Clamped   bool    `json:"clamped"`
	Pulses    uint32  `json:"pulses"`
	Spurious  uint32  `json:"spurious"`
	Restarted uint32  `json:"restarted"`
}

func channelDiagnostics(c logic.ChannelReading) ChannelDiagnostics {
	return ChannelDiagnostics{
		LowMicros: c.LowMicros,
		Ratio:     c.Ratio,
		Clamped:   c.Clamped,
		Pulses:    c.Pulses,
		Spurious:  c.Spurious,
		Restarted: c.Restarted,
	}
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r logic.Reading) ([]byte, error) {
	payload := ReadingPayload{
		Timestamp:     r.Timestamp.UTC().Format(time.RFC3339),
		Seq:           r.Seq,
		WindowSeconds: r.Window.Seconds(),
		Record:        report.NewRecord(r),
		Diagnostics: Diagnostics{
			PM10: channelDiagnostics(r.PM10),
			PM25: channelDiagnostics(r.PM25),
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
