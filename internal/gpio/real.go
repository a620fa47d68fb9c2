//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// CdevSource reads edges from actual hardware using the Linux GPIO character
// device. The kernel timestamps each edge, so handler latency does not skew
// pulse lengths.
type CdevSource struct {
	chipName string
	pins     [2]int
	ids      [2]logic.ChannelID
	invert   bool

	chip  *gpiocdev.Chip
	lines [2]*gpiocdev.Line
}

// NewCdevSource creates an edge source for the PM1.0 and PM2.5 lines.
// With invert set the lines are treated as active low, for boards that put
// an inverting level shifter between the sensor and the GPIO header.
func NewCdevSource(chip string, pinPM10, pinPM25 int, invert bool) *CdevSource {
	if chip == "" {
		chip = DefaultChip
	}
	return &CdevSource{
		chipName: chip,
		pins:     [2]int{pinPM10, pinPM25},
		ids:      [2]logic.ChannelID{logic.ChannelPM10, logic.ChannelPM25},
		invert:   invert,
	}
}

// Start requests both lines as inputs with edge detection on both edges.
func (s *CdevSource) Start(h Handler) error {
	if s.chip != nil {
		return errors.New("gpio: already started")
	}
	chip, err := gpiocdev.NewChip(s.chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}
	s.chip = chip

	for i, pin := range s.pins {
		id := s.ids[i]
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				h(Edge{
					Channel: id,
					Kind:    kindOf(evt.Type == gpiocdev.LineEventRisingEdge),
					Time:    evt.Timestamp,
				})
			}),
		}
		if s.invert {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			s.Close()
			return fmt.Errorf("request %s pin %d: %w", id, pin, err)
		}
		s.lines[i] = line
	}
	return nil
}

// Levels returns the current levels of both lines.
func (s *CdevSource) Levels() (bool, bool, error) {
	if s.lines[0] == nil || s.lines[1] == nil {
		return false, false, errors.New("gpio: not started")
	}
	pm10, err := s.lines[0].Value()
	if err != nil {
		return false, false, fmt.Errorf("read %s pin: %w", s.ids[0], err)
	}
	pm25, err := s.lines[1].Value()
	if err != nil {
		return false, false, fmt.Errorf("read %s pin: %w", s.ids[1], err)
	}
	return pm10 == 1, pm25 == 1, nil
}

// Close releases both lines and the chip. Edge delivery stops before the
// line is released.
func (s *CdevSource) Close() error {
	var errs []error
	for i, line := range s.lines {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", s.ids[i], err))
		}
		s.lines[i] = nil
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}
	return errors.Join(errs...)
}
