package logic

import (
	"math"
	"testing"
	"time"
)

func newTestSampler(start Millis, policy ZeroPolicy) (*Sampler, *Channel, *Channel) {
	pm10 := NewChannel(ChannelPM10)
	pm25 := NewChannel(ChannelPM25)
	s := NewSampler(SamplerConfig{Window: 30 * time.Second, Policy: policy}, start, pm10, pm25)
	return s, pm10, pm25
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewSamplerDefaults(t *testing.T) {
	s := NewSampler(SamplerConfig{}, 0, NewChannel(ChannelPM10), NewChannel(ChannelPM25))
	cfg := s.Config()
	if cfg.Window != DefaultWindow {
		t.Errorf("Window: got %v, want %v", cfg.Window, DefaultWindow)
	}
	if cfg.Policy != ZeroClamp {
		t.Errorf("Policy: got %q, want %q", cfg.Policy, ZeroClamp)
	}
}

func TestNewSamplerNormalizesWindow(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{500 * time.Microsecond, DefaultWindow},
		{-time.Second, DefaultWindow},
		{30*time.Second + 500*time.Microsecond, 30 * time.Second},
		{time.Millisecond, time.Millisecond},
		{24 * time.Hour, MaxWindow},
	}
	for _, tt := range tests {
		s := NewSampler(SamplerConfig{Window: tt.in}, 0, NewChannel(ChannelPM10), NewChannel(ChannelPM25))
		if got := s.Config().Window; got != tt.want {
			t.Errorf("Window %v: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

// A sub-millisecond window must not close on every tick.
func TestSamplerTinyWindowDoesNotCloseImmediately(t *testing.T) {
	s := NewSampler(SamplerConfig{Window: 500 * time.Microsecond}, 0, NewChannel(ChannelPM10), NewChannel(ChannelPM25))
	if _, ok := s.Tick(0); ok {
		t.Error("window closed with nothing elapsed")
	}
}

// The reading of a full fractional-millisecond window stays within 100.
func TestSamplerFractionalWindowRatio(t *testing.T) {
	pm10 := NewChannel(ChannelPM10)
	s := NewSampler(SamplerConfig{Window: 30*time.Second + 500*time.Microsecond}, 0, pm10, NewChannel(ChannelPM25))

	pm10.Fall(0)
	pm10.Rise(30000500)

	r, ok := s.Tick(30000)
	if !ok {
		t.Fatal("expected reading")
	}
	if r.PM10.Ratio != 100 || !r.PM10.Clamped {
		t.Errorf("ratio: got %v clamped=%v, want 100 clamped", r.PM10.Ratio, r.PM10.Clamped)
	}
}

func TestSamplerWaitsForWindow(t *testing.T) {
	s, _, _ := newTestSampler(1000, ZeroClamp)

	if _, ok := s.Tick(1000); ok {
		t.Error("no reading expected at window start")
	}
	if _, ok := s.Tick(30999); ok {
		t.Error("no reading expected before window elapsed")
	}
	r, ok := s.Tick(31000)
	if !ok {
		t.Fatal("expected reading once window elapsed")
	}
	if r.Seq != 1 {
		t.Errorf("Seq: got %d, want 1", r.Seq)
	}
	if r.Window != 30*time.Second {
		t.Errorf("Window: got %v, want 30s", r.Window)
	}
}

func TestSamplerReopensWindowAtTick(t *testing.T) {
	s, _, _ := newTestSampler(0, ZeroClamp)

	// A late tick moves the next window boundary with it.
	if _, ok := s.Tick(30500); !ok {
		t.Fatal("expected first reading")
	}
	if _, ok := s.Tick(60499); ok {
		t.Error("second window closed early")
	}
	r, ok := s.Tick(60500)
	if !ok {
		t.Fatal("expected second reading")
	}
	if r.Seq != 2 {
		t.Errorf("Seq: got %d, want 2", r.Seq)
	}
}

func TestSamplerMillisWraparound(t *testing.T) {
	start := Millis(math.MaxUint32 - 1000)
	s, _, _ := newTestSampler(start, ZeroClamp)

	if _, ok := s.Tick(start + 29999); ok {
		t.Error("no reading expected before window elapsed across wrap")
	}
	if _, ok := s.Tick(start + 30000); !ok {
		t.Error("expected reading after window elapsed across wrap")
	}
}

func TestSamplerRemaining(t *testing.T) {
	s, _, _ := newTestSampler(0, ZeroClamp)

	if got := s.Remaining(10000); got != 20*time.Second {
		t.Errorf("Remaining: got %v, want 20s", got)
	}
	if got := s.Remaining(45000); got != 0 {
		t.Errorf("Remaining past boundary: got %v, want 0", got)
	}
}

func TestSamplerLowOccupancyReading(t *testing.T) {
	s, pm10, _ := newTestSampler(0, ZeroClamp)

	// 30 ms low in a 30 s window.
	pm10.Fall(1000)
	pm10.Rise(31000)

	r, ok := s.Tick(30000)
	if !ok {
		t.Fatal("expected reading")
	}
	if !approx(r.PM10.Ratio, 0.1) {
		t.Errorf("PM10 ratio: got %v, want 0.1", r.PM10.Ratio)
	}
	wantConc := 1.1*math.Pow(0.1, 3) - 3.8*math.Pow(0.1, 2) + 520*0.1 + 0.62
	if !approx(r.PM10.Concentration, wantConc) {
		t.Errorf("PM10 concentration: got %v, want %v", r.PM10.Concentration, wantConc)
	}
	if !approx(r.PM10.UGM3, MassConcentration(wantConc)) {
		t.Errorf("PM10 ugm3: got %v, want %v", r.PM10.UGM3, MassConcentration(wantConc))
	}
	if r.PM10.Pulses != 1 {
		t.Errorf("PM10 pulses: got %d, want 1", r.PM10.Pulses)
	}
	if r.PM10.Channel != ChannelPM10 || r.PM25.Channel != ChannelPM25 {
		t.Errorf("channel ids: got %q/%q", r.PM10.Channel, r.PM25.Channel)
	}
}

func TestSamplerIdleLineReadsZero(t *testing.T) {
	s, _, _ := newTestSampler(0, ZeroClamp)

	r, _ := s.Tick(30000)
	if r.PM25.LowMicros != 0 || r.PM25.Ratio != 0 {
		t.Errorf("PM25: got low=%d ratio=%v, want 0", r.PM25.LowMicros, r.PM25.Ratio)
	}
	if r.PM25.Concentration != 0 {
		t.Errorf("PM25 concentration: got %v, want 0", r.PM25.Concentration)
	}
	if r.PM25.UGM3 != 0 {
		t.Errorf("PM25 ugm3: got %v, want 0", r.PM25.UGM3)
	}
}

// The legacy policy reports the curve offset for a clean window. It is kept
// only for comparison with old firmware logs.
func TestSamplerIdleLineLegacyPolicy(t *testing.T) {
	s, _, _ := newTestSampler(0, ZeroLegacy)

	r, _ := s.Tick(30000)
	if !approx(r.PM25.Concentration, 0.62) {
		t.Errorf("PM25 concentration: got %v, want 0.62", r.PM25.Concentration)
	}
}

func TestSamplerClampsOverlongLowTime(t *testing.T) {
	s, _, pm25 := newTestSampler(0, ZeroClamp)

	// 40 s of low time reported inside a 30 s window.
	pm25.Fall(0)
	pm25.Rise(20000000)
	pm25.Fall(20000000)
	pm25.Rise(40000000)

	r, _ := s.Tick(30000)
	if !r.PM25.Clamped {
		t.Error("expected Clamped")
	}
	if r.PM25.Ratio != 100 {
		t.Errorf("ratio: got %v, want 100", r.PM25.Ratio)
	}
	if r.PM25.LowMicros != 40000000 {
		t.Errorf("LowMicros keeps the raw value: got %d", r.PM25.LowMicros)
	}
	if !approx(r.PM25.Concentration, Concentration(100, ZeroClamp)) {
		t.Errorf("concentration: got %v, want %v", r.PM25.Concentration, Concentration(100, ZeroClamp))
	}
}

func TestSamplerPulseAcrossBoundary(t *testing.T) {
	s, pm10, _ := newTestSampler(0, ZeroClamp)

	pm10.Fall(29000000)
	first, _ := s.Tick(30000)
	pm10.Rise(31000000)
	second, _ := s.Tick(60000)

	if first.PM10.LowMicros != 0 {
		t.Errorf("first window: got %d, want 0", first.PM10.LowMicros)
	}
	if second.PM10.LowMicros != 2000000 {
		t.Errorf("second window: got %d, want 2000000", second.PM10.LowMicros)
	}
}

func TestReadingBandUGM3(t *testing.T) {
	r := Reading{
		PM10: ChannelReading{UGM3: 12.5},
		PM25: ChannelReading{UGM3: 4.25},
	}
	if got := r.BandUGM3(); got != 8.25 {
		t.Errorf("BandUGM3: got %v, want 8.25", got)
	}
}

func TestTicksAndMillisOf(t *testing.T) {
	if got := TicksOf(1500 * time.Microsecond); got != 1500 {
		t.Errorf("TicksOf: got %d, want 1500", got)
	}
	if got := TicksOf(time.Duration(1<<32) * time.Microsecond); got != 0 {
		t.Errorf("TicksOf wrap: got %d, want 0", got)
	}
	if got := MillisOf(2500 * time.Millisecond); got != 2500 {
		t.Errorf("MillisOf: got %d, want 2500", got)
	}
	if got := Ticks(5).Since(Ticks(math.MaxUint32)); got != 6 {
		t.Errorf("Since across wrap: got %d, want 6", got)
	}
}
