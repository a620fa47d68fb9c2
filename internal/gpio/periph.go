package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// edgeWait bounds each WaitForEdge call so Close is noticed promptly.
const edgeWait = 250 * time.Millisecond

// PeriphSource reads edges through periph.io drivers. Edges are timestamped
// in user space when WaitForEdge returns, so pulse lengths carry scheduling
// jitter; prefer the cdev backend where it is available.
//
// The level reported with each edge comes from reading the pin after
// WaitForEdge returns. A pulse that ends before that read would show the
// same level as the previous edge, so such an edge is reported as the
// opposite of the last level instead. The missed pulse is then recorded
// with a near-zero low time rather than dropped as a spurious rise.
type PeriphSource struct {
	names  [2]string
	ids    [2]logic.ChannelID
	invert bool
	now    func() time.Duration

	pins [2]gpio.PinIO
	done chan struct{}
	wg   sync.WaitGroup
}

// NewPeriphSource creates an edge source for the given BCM pin numbers.
// now supplies the monotonic timestamp attached to each edge.
func NewPeriphSource(pinPM10, pinPM25 int, invert bool, now func() time.Duration) *PeriphSource {
	if now == nil {
		epoch := time.Now()
		now = func() time.Duration { return time.Since(epoch) }
	}
	return &PeriphSource{
		names:  [2]string{strconv.Itoa(pinPM10), strconv.Itoa(pinPM25)},
		ids:    [2]logic.ChannelID{logic.ChannelPM10, logic.ChannelPM25},
		invert: invert,
		now:    now,
	}
}

// Start initialises the host drivers and starts one waiter per line.
func (s *PeriphSource) Start(h Handler) error {
	if s.done != nil {
		return errors.New("gpio: already started")
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}
	for i, name := range s.names {
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("no GPIO pin named %s for %s", name, s.ids[i])
		}
		if err := p.In(gpio.Float, gpio.BothEdges); err != nil {
			return fmt.Errorf("configure %s pin %s: %w", s.ids[i], name, err)
		}
		s.pins[i] = p
	}

	s.done = make(chan struct{})
	for i := range s.pins {
		s.wg.Add(1)
		go s.watch(s.pins[i], s.ids[i], h)
	}
	return nil
}

func (s *PeriphSource) watch(p gpio.PinIO, id logic.ChannelID, h Handler) {
	defer s.wg.Done()
	last := p.Read() == gpio.High
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if !p.WaitForEdge(edgeWait) {
			continue
		}
		at := s.now()
		high := nextLevel(last, p.Read() == gpio.High)
		last = high
		if s.invert {
			high = !high
		}
		h(Edge{Channel: id, Kind: kindOf(high), Time: at})
	}
}

// nextLevel returns the line level after an edge given the level before it
// and the level read afterwards. Every edge changes the level, so a read that
// matches the previous level means the line already moved back.
func nextLevel(last, read bool) bool {
	if read == last {
		return !last
	}
	return read
}

// Levels returns the current levels of both lines.
func (s *PeriphSource) Levels() (bool, bool, error) {
	if s.pins[0] == nil || s.pins[1] == nil {
		return false, false, errors.New("gpio: not started")
	}
	pm10 := s.pins[0].Read() == gpio.High
	pm25 := s.pins[1].Read() == gpio.High
	if s.invert {
		pm10, pm25 = !pm10, !pm25
	}
	return pm10, pm25, nil
}

// Close stops the waiters and halts both pins.
func (s *PeriphSource) Close() error {
	if s.done != nil {
		close(s.done)
		s.wg.Wait()
		s.done = nil
	}
	var errs []error
	for i, p := range s.pins {
		if p == nil {
			continue
		}
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s pin: %w", s.ids[i], err))
		}
		s.pins[i] = nil
	}
	return errors.Join(errs...)
}
