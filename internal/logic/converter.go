package logic

import (
	"fmt"
	"math"
	"time"
)

// ZeroPolicy selects how Concentration treats a ratio of exactly zero.
type ZeroPolicy string

const (
	// ZeroClamp reports 0 for a zero ratio instead of the curve's 0.62 offset.
	ZeroClamp ZeroPolicy = "zero"
	// ZeroLegacy applies the curve unconditionally, so an idle sensor reads 0.62.
	ZeroLegacy ZeroPolicy = "legacy"
)

// ParseZeroPolicy converts a configuration value to a ZeroPolicy.
// The empty string selects ZeroClamp.
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch ZeroPolicy(s) {
	case "", ZeroClamp:
		return ZeroClamp, nil
	case ZeroLegacy:
		return ZeroLegacy, nil
	}
	return "", fmt.Errorf("unknown zero policy %q (want %q or %q)", s, ZeroClamp, ZeroLegacy)
}

// Mass model: every particle is a sphere of radius 0.44 µm with a density of
// 1.65e12 µg/m³. The same model is used for both channels, so the PM1.0
// estimate is probably high.
const (
	particleDensity = 1.65e12 // µg/m³
	particleRadius  = 0.44e-6 // m

	// FeetToMeters scales a per-0.01ft³ count to a per-m³ count.
	FeetToMeters = 3531.5
)

// MassPerParticle returns the assumed mass of one particle in µg.
func MassPerParticle() float64 {
	volume := 4.0 / 3.0 * math.Pi * math.Pow(particleRadius, 3)
	return particleDensity * volume
}

// Ratio converts low time in microseconds to a percentage of the window.
// Low time beyond the window length is clamped so the ratio stays in [0,100].
func Ratio(lowMicros uint64, window time.Duration) (ratio float64, clamped bool) {
	limit := uint64(window / time.Microsecond)
	if limit == 0 {
		return 0, lowMicros > 0
	}
	if lowMicros > limit {
		lowMicros = limit
		clamped = true
	}
	// Divisor is the exact window, never smaller than limit, so the result
	// cannot exceed 100.
	windowMs := float64(window) / float64(time.Millisecond)
	return float64(lowMicros) / 1000.0 / windowMs * 100.0, clamped
}

// Concentration applies the datasheet curve to a ratio on the 0-100 scale:
//
//	1.1·r³ − 3.8·r² + 520·r + 0.62
func Concentration(ratio float64, policy ZeroPolicy) float64 {
	if ratio == 0 && policy != ZeroLegacy {
		return 0
	}
	return 1.1*math.Pow(ratio, 3) - 3.8*math.Pow(ratio, 2) + 520*ratio + 0.62
}

// MassConcentration converts a particle concentration to µg/m³.
func MassConcentration(conc float64) float64 {
	return conc * FeetToMeters * MassPerParticle()
}
