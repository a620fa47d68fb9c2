// Package gpio delivers line transitions from the sensor outputs.
// The cdev implementation uses the Linux GPIO character device, the periph
// implementation uses periph.io drivers, and the fake implementation allows
// testing without hardware.
package gpio

import (
	"fmt"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// Edge is one transition on a sensor line.
type Edge struct {
	Channel logic.ChannelID
	Kind    logic.EdgeKind
	// Time is a monotonic timestamp. Only differences between edges of the
	// same channel are meaningful.
	Time time.Duration
}

// Handler receives edges. It is called from a goroutine owned by the source,
// in order for any one channel, and must return quickly.
type Handler func(Edge)

// EdgeSource reports transitions on the two sensor lines.
type EdgeSource interface {
	// Start begins delivering edges to h. It must be called once.
	Start(h Handler) error

	// Levels returns the current raw levels (true = high) of both lines.
	Levels() (pm10, pm25 bool, err error)

	// Close stops delivery and releases the lines.
	Close() error
}

// Pin definitions (BCM numbering). The sensor's P1 output (JST pin 4) is
// the PM1.0 channel, P2 (JST pin 2) is the PM2.5 channel.
const (
	DefaultPinPM10 = 8
	DefaultPinPM25 = 9
	DefaultChip    = "gpiochip0"
)

// Backend names accepted by New.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
)

// New returns the EdgeSource for the named backend.
func New(backend, chip string, pinPM10, pinPM25 int, invert bool, now func() time.Duration) (EdgeSource, error) {
	switch backend {
	case "", BackendCdev:
		return NewCdevSource(chip, pinPM10, pinPM25, invert), nil
	case BackendPeriph:
		return NewPeriphSource(pinPM10, pinPM25, invert, now), nil
	}
	return nil, fmt.Errorf("unknown gpio backend %q", backend)
}

// Dispatch returns a Handler that feeds each edge to its channel.
// Edges for unknown channels are dropped.
func Dispatch(pm10, pm25 *logic.Channel) Handler {
	return func(e Edge) {
		at := logic.TicksOf(e.Time)
		switch e.Channel {
		case pm10.ID():
			pm10.HandleEdge(e.Kind, at)
		case pm25.ID():
			pm25.HandleEdge(e.Kind, at)
		}
	}
}

// kindOf maps a line level after a transition to the edge direction.
func kindOf(high bool) logic.EdgeKind {
	if high {
		return logic.Rising
	}
	return logic.Falling
}
