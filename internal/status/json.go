package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
	"github.com/sweeney/ppd42-sensor/internal/report"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event              string       `json:"event,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	Ready              bool         `json:"ready"`
	Windows            uint64       `json:"windows"`
	NextReadingSeconds int64        `json:"next_reading_seconds"`
	UptimeSeconds      int64        `json:"uptime_seconds"`
	StartTime          string       `json:"start_time"`
	Timestamp          string       `json:"timestamp"`
	Reading            *ReadingJSON `json:"reading,omitempty"`
	MQTT               MQTTStatus   `json:"mqtt"`
	Config             ConfigJSON   `json:"config"`
}

// ReadingJSON is the latest reading: the output record plus raw channel data.
type ReadingJSON struct {
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	report.Record
	PM10 ChannelJSON `json:"PM1.0"`
	PM25 ChannelJSON `json:"PM2.5"`
}

// ChannelJSON is the raw measurement behind one channel of a reading.
type ChannelJSON struct {
	LowMicros uint64  `json:"low_us"`
	Ratio     float64 `json:"ratio"`
	Clamped   bool    `json:"clamped"`
	Pulses    uint32  `json:"pulses"`
	Spurious  uint32  `json:"spurious"`
	Restarted uint32  `json:"restarted"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WindowMs   int64  `json:"window_ms"`
	PollMs     int64  `json:"poll_ms"`
	ZeroPolicy string `json:"zero_policy"`
	Format     string `json:"format"`
	Backend    string `json:"gpio_backend"`
	PinPM10    int    `json:"pin_pm10"`
	PinPM25    int    `json:"pin_pm25"`
	SerialPort string `json:"serial_port,omitempty"`
	Broker     string `json:"broker,omitempty"`
	HTTPAddr   string `json:"http_addr,omitempty"`
}

func channelJSON(c logic.ChannelReading) ChannelJSON {
	return ChannelJSON{
		LowMicros: c.LowMicros,
		Ratio:     c.Ratio,
		Clamped:   c.Clamped,
		Pulses:    c.Pulses,
		Spurious:  c.Spurious,
		Restarted: c.Restarted,
	}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:              snap.Ready(),
		Windows:            snap.Windows,
		NextReadingSeconds: int64(snap.NextReading.Round(time.Second).Seconds()),
		UptimeSeconds:      int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:          snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:          snap.Now.UTC().Format(time.RFC3339),
		MQTT:               MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			WindowMs:   snap.Config.WindowMs,
			PollMs:     snap.Config.PollMs,
			ZeroPolicy: snap.Config.ZeroPolicy,
			Format:     snap.Config.Format,
			Backend:    snap.Config.Backend,
			PinPM10:    snap.Config.PinPM10,
			PinPM25:    snap.Config.PinPM25,
			SerialPort: snap.Config.SerialPort,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
	if r := snap.Last; r != nil {
		inner.Reading = &ReadingJSON{
			Seq:       r.Seq,
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Record:    report.NewRecord(*r),
			PM10:      channelJSON(r.PM10),
			PM25:      channelJSON(r.PM25),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
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
