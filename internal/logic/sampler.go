package logic

import "time"

// DefaultWindow is the sampling window used by the sensor vendor.
const DefaultWindow = 30 * time.Second

// MaxWindow is the longest window a Sampler accepts.
const MaxWindow = 12 * time.Hour

// SamplerConfig holds the fixed sampling parameters.
type SamplerConfig struct {
	Window time.Duration
	Policy ZeroPolicy
}

// Sampler turns the two channel accumulators into one Reading per window.
// It is driven by a cooperative loop that calls Tick; it never blocks.
type Sampler struct {
	cfg         SamplerConfig
	windowMs    uint32
	windowStart Millis
	pm10        *Channel
	pm25        *Channel
	seq         uint64
}

// NewSampler creates a Sampler whose first window opens at start.
// The window is truncated to whole milliseconds, the resolution of the window
// clock; a Window shorter than 1ms selects DefaultWindow and one longer than
// MaxWindow is cut to MaxWindow.
func NewSampler(cfg SamplerConfig, start Millis, pm10, pm25 *Channel) *Sampler {
	cfg.Window = cfg.Window.Truncate(time.Millisecond)
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Window > MaxWindow {
		cfg.Window = MaxWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = ZeroClamp
	}
	return &Sampler{
		cfg:         cfg,
		windowMs:    uint32(cfg.Window / time.Millisecond),
		windowStart: start,
		pm10:        pm10,
		pm25:        pm25,
	}
}

// Config returns the effective configuration.
func (s *Sampler) Config() SamplerConfig {
	return s.cfg
}

// Tick closes the window if it has run for at least the configured length.
// It returns the reading and true when a window was closed, and opens the
// next window at now.
func (s *Sampler) Tick(now Millis) (Reading, bool) {
	if now.Since(s.windowStart) < s.windowMs {
		return Reading{}, false
	}

	r := Reading{
		Window: s.cfg.Window,
		PM10:   s.convert(s.pm10.ID(), s.pm10.Drain()),
		PM25:   s.convert(s.pm25.ID(), s.pm25.Drain()),
	}
	s.seq++
	r.Seq = s.seq
	s.windowStart = now
	return r, true
}

// Remaining returns the time left in the current window.
func (s *Sampler) Remaining(now Millis) time.Duration {
	elapsed := now.Since(s.windowStart)
	if elapsed >= s.windowMs {
		return 0
	}
	return time.Duration(s.windowMs-elapsed) * time.Millisecond
}

func (s *Sampler) convert(id ChannelID, d Drained) ChannelReading {
	ratio, clamped := Ratio(d.LowMicros, s.cfg.Window)
	conc := Concentration(ratio, s.cfg.Policy)
	return ChannelReading{
		Channel:       id,
		LowMicros:     d.LowMicros,
		Ratio:         ratio,
		Clamped:       clamped,
		Concentration: conc,
		UGM3:          MassConcentration(conc),
		Pulses:        d.Pulses,
		Spurious:      d.Spurious,
		Restarted:     d.Restarted,
	}
}
