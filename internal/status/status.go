// Package status provides a thread-safe status tracker for the ppd42-sensor daemon.
// It is read by the HTTP handlers and used for MQTT lifecycle snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	WindowMs   int64
	PollMs     int64
	ZeroPolicy string
	Format     string
	Backend    string
	PinPM10    int
	PinPM25    int
	SerialPort string
	Broker     string
	HTTPAddr   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Last          *logic.Reading // nil until the first window closes
	Windows       uint64
	NextReading   time.Duration
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one window has been reported.
func (s Snapshot) Ready() bool {
	return s.Last != nil
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	last logic.Reading
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the reading of a closed window.
func (t *Tracker) Update(r logic.Reading) {
	t.mu.Lock()
	t.last = r
	t.snap.Windows++
	t.mu.Unlock()
}

// SetNextReading sets the time left in the current window.
// Called from runLoop on every tick.
func (t *Tracker) SetNextReading(d time.Duration) {
	t.mu.Lock()
	t.snap.NextReading = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Windows > 0 {
		last := t.last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
