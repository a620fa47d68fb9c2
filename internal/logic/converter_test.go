package logic

import (
	"math"
	"testing"
	"time"
)

func TestConcentrationZeroRatio(t *testing.T) {
	if got := Concentration(0, ZeroClamp); got != 0 {
		t.Errorf("zero policy: got %v, want 0", got)
	}
	// The legacy policy keeps the curve offset.
	if got := Concentration(0, ZeroLegacy); !approx(got, 0.62) {
		t.Errorf("legacy policy: got %v, want 0.62", got)
	}
}

func TestConcentrationCurve(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{0.1, 1.1*0.001 - 3.8*0.01 + 52 + 0.62},
		{1, 1.1 - 3.8 + 520 + 0.62},
		{10, 1100 - 380 + 5200 + 0.62},
		{100, 1100000 - 38000 + 52000 + 0.62},
	}
	for _, tt := range tests {
		for _, policy := range []ZeroPolicy{ZeroClamp, ZeroLegacy} {
			got := Concentration(tt.ratio, policy)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ratio %v (%s): got %v, want %v", tt.ratio, policy, got, tt.want)
			}
		}
	}
}

func TestConcentrationMonotonic(t *testing.T) {
	prev := Concentration(0, ZeroClamp)
	for i := 1; i <= 10000; i++ {
		r := float64(i) / 100
		c := Concentration(r, ZeroClamp)
		if math.IsNaN(c) || c <= prev {
			t.Fatalf("curve must increase at ratio %v: %v after %v", r, c, prev)
		}
		prev = c
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		low  uint64
		want float64
	}{
		{30000, 0.1},
		{15000000, 50},
		{30000000, 100},
	}
	for _, tt := range tests {
		ratio, clamped := Ratio(tt.low, 30*time.Second)
		if !approx(ratio, tt.want) {
			t.Errorf("Ratio(%d): got %v, want %v", tt.low, ratio, tt.want)
		}
		if clamped {
			t.Errorf("Ratio(%d): unexpected clamp", tt.low)
		}
	}
}

func TestRatioClampsToWindow(t *testing.T) {
	ratio, clamped := Ratio(45000000, 30*time.Second)
	if ratio != 100 {
		t.Errorf("ratio: got %v, want 100", ratio)
	}
	if !clamped {
		t.Error("expected clamped")
	}
}

// Windows that are not whole milliseconds must still top out at 100.
func TestRatioNeverExceedsHundred(t *testing.T) {
	tests := []struct {
		low    uint64
		window time.Duration
	}{
		{30000500, 30*time.Second + 500*time.Microsecond},
		{30000499, 30*time.Second + 500*time.Microsecond},
		{10000, 1500 * time.Microsecond},
		{1500, 1500*time.Microsecond + 700*time.Nanosecond},
		{999, 999 * time.Microsecond},
		{math.MaxUint32, 12*time.Hour + 999*time.Nanosecond},
	}
	for _, tt := range tests {
		ratio, _ := Ratio(tt.low, tt.window)
		if ratio > 100 || ratio < 0 {
			t.Errorf("Ratio(%d, %v): got %v, want within [0,100]", tt.low, tt.window, ratio)
		}
	}

	ratio, clamped := Ratio(30000500, 30*time.Second+500*time.Microsecond)
	if ratio != 100 || clamped {
		t.Errorf("full 30.0005s window: got %v clamped=%v, want 100 unclamped", ratio, clamped)
	}
	ratio, clamped = Ratio(10000, 1500*time.Microsecond)
	if ratio != 100 || !clamped {
		t.Errorf("overlong 1.5ms window: got %v clamped=%v, want 100 clamped", ratio, clamped)
	}
}

func TestRatioZeroWindow(t *testing.T) {
	if ratio, clamped := Ratio(0, 0); ratio != 0 || clamped {
		t.Errorf("empty: got %v clamped=%v, want 0 unclamped", ratio, clamped)
	}
	if ratio, clamped := Ratio(10, 0); ratio != 0 || !clamped {
		t.Errorf("low time without window: got %v clamped=%v, want 0 clamped", ratio, clamped)
	}
	if ratio, clamped := Ratio(10, 500*time.Nanosecond); ratio != 0 || !clamped {
		t.Errorf("sub-microsecond window: got %v clamped=%v, want 0 clamped", ratio, clamped)
	}
}

func TestMassPerParticle(t *testing.T) {
	want := 1.65e12 * (4.0 / 3.0) * math.Pi * math.Pow(0.44e-6, 3)
	if got := MassPerParticle(); math.Abs(got-want) > 1e-18 {
		t.Errorf("MassPerParticle: got %v, want %v", got, want)
	}
	if got := MassPerParticle(); math.Abs(got-5.887e-7) > 1e-9 {
		t.Errorf("MassPerParticle: got %v, want about 5.887e-7", got)
	}
}

func TestMassConcentration(t *testing.T) {
	masspm := 1.65e12 * (4.0 / 3.0) * math.Pi * math.Pow(0.44e-6, 3)
	if got, want := MassConcentration(10.0), 10.0*3531.5*masspm; math.Abs(got-want) > 1e-12 {
		t.Errorf("MassConcentration(10): got %v, want %v", got, want)
	}
	if got := MassConcentration(0); got != 0 {
		t.Errorf("MassConcentration(0): got %v, want 0", got)
	}
}

func TestParseZeroPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want ZeroPolicy
	}{
		{"", ZeroClamp},
		{"zero", ZeroClamp},
		{"legacy", ZeroLegacy},
	}
	for _, tt := range tests {
		got, err := ParseZeroPolicy(tt.in)
		if err != nil {
			t.Errorf("ParseZeroPolicy(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseZeroPolicy(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := ParseZeroPolicy("round"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
