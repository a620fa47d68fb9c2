// Package logic contains the pure measurement core of the PPD42NS driver.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable: edges carry their own Ticks and the Sampler is
// handed the current Millis on every call.
package logic

import "time"

// ChannelID identifies one of the two sensor outputs.
type ChannelID string

const (
	// ChannelPM10 is sensor output P1 (particles > ~1 µm).
	ChannelPM10 ChannelID = "PM1.0"
	// ChannelPM25 is sensor output P2 (particles > ~2.5 µm).
	ChannelPM25 ChannelID = "PM2.5"
)

// EdgeKind is the direction of a line transition.
type EdgeKind int

const (
	// Falling is high-to-low: a low pulse begins.
	Falling EdgeKind = iota
	// Rising is low-to-high: a low pulse ends.
	Rising
)

func (k EdgeKind) String() string {
	if k == Falling {
		return "FALLING"
	}
	return "RISING"
}

// Ticks is a free-running, wrapping microsecond counter (an Arduino micros()
// equivalent). Differences are taken with unsigned arithmetic so a wrap
// between two readings is harmless.
type Ticks uint32

// TicksOf truncates a monotonic duration to the wrapping counter.
func TicksOf(d time.Duration) Ticks {
	return Ticks(uint64(d / time.Microsecond))
}

// Since returns the microseconds elapsed from start to t.
func (t Ticks) Since(start Ticks) uint32 {
	return uint32(t - start)
}

// Millis is a free-running, wrapping millisecond counter.
type Millis uint32

// MillisOf truncates a monotonic duration to the wrapping counter.
func MillisOf(d time.Duration) Millis {
	return Millis(uint64(d / time.Millisecond))
}

// Since returns the milliseconds elapsed from start to m.
func (m Millis) Since(start Millis) uint32 {
	return uint32(m - start)
}

// Drained is what a channel hands over at a window boundary.
type Drained struct {
	LowMicros uint64 // accumulated low time, unclamped
	Pulses    uint32 // completed low pulses
	Spurious  uint32 // rising edges with no open pulse, ignored
	Restarted uint32 // falling edges that replaced an already open pulse
}

// ChannelReading is the derived result for one channel over one window.
type ChannelReading struct {
	Channel       ChannelID
	LowMicros     uint64  // accumulated low time, unclamped
	Ratio         float64 // low pulse occupancy, percent of the window (0-100)
	Clamped       bool    // LowMicros exceeded the window and was clamped
	Concentration float64 // vendor curve output, pcs/0.01cf
	UGM3          float64 // mass estimate, µg/m³
	Pulses        uint32
	Spurious      uint32
	Restarted     uint32
}

// Reading is the result of one completed sampling window.
type Reading struct {
	Seq    uint64 // 1-based window counter since startup
	Window time.Duration
	PM10   ChannelReading
	PM25   ChannelReading

	// Timestamp is the wall-clock time the window closed. The Sampler has no
	// wall clock; the caller fills it in.
	Timestamp time.Time
}

// BandUGM3 is the PM1.0 estimate minus the PM2.5 estimate: the mass in
// the band between the two channel thresholds.
func (r Reading) BandUGM3() float64 {
	return r.PM10.UGM3 - r.PM25.UGM3
}
