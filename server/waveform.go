package metricgen

import (
	"math"

	Mt "github.com/maroda/metricgen/types"
)

const (
	twoPi = 2 * math.Pi

	// Neutral values a static generator is collapsed to
	staticAmplitude   = 0.0
	staticPeriod      = 60.0
	staticPhaseOffset = 0.0

	// Used when a stored period is not usable
	defaultPeriod = 60.0
)

// ShapeFunc returns the waveform component (without the base value)
// for a given phase in radians and amplitude.
type ShapeFunc func(phase, amplitude float64) float64

// A map between waveform type and its shape function
var shapes = map[Mt.WaveformType]ShapeFunc{
	Mt.Sinusoidal: sinusoid,
	Mt.Square:     squareWave,
	Mt.Triangle:   triangleWave,
	Mt.Sawtooth:   sawtoothWave,
	Mt.Static:     flat,
}

// ShapeLookup returns the shape for the waveform type.
// Unrecognised types fall back to the sinusoid, this is never an error.
func ShapeLookup(wt Mt.WaveformType) ShapeFunc {
	shape, ok := shapes[wt]
	if !ok {
		return sinusoid
	}
	return shape
}

// WaveformTypes lists the known types in display order
func WaveformTypes() []Mt.WaveformType {
	return []Mt.WaveformType{Mt.Sinusoidal, Mt.Square, Mt.Triangle, Mt.Sawtooth, Mt.Static}
}

// KnownWaveform reports if wt has its own shape
func KnownWaveform(wt Mt.WaveformType) bool {
	_, ok := shapes[wt]
	return ok
}

// Normalize forces the neutral amplitude, period and phase onto a static generator
// and repairs a period that cannot be divided by.
func Normalize(p Mt.WaveformParameters) Mt.WaveformParameters {
	if p.WaveformType == Mt.Static {
		p.Amplitude = staticAmplitude
		p.Period = staticPeriod
		p.PhaseOffset = staticPhaseOffset
	}
	if !(p.Period > 0) || math.IsInf(p.Period, 0) {
		p.Period = defaultPeriod
	}
	return p
}

// Phase is frequency * t + phase offset, in radians
func Phase(p Mt.WaveformParameters, t float64) float64 {
	frequency := twoPi / p.Period
	return frequency*t + p.PhaseOffset
}

// Component is the waveform contribution at time t, without the base value
func Component(p Mt.WaveformParameters, t float64) float64 {
	p = Normalize(p)
	return ShapeLookup(p.WaveformType)(Phase(p, t), p.Amplitude)
}

// Evaluate returns the generator value at time t (seconds):
// base value + waveform component
func Evaluate(p Mt.WaveformParameters, t float64) float64 {
	return p.BaseValue + Component(p, t)
}

// wrapPhase folds any phase into [0, 2π)
func wrapPhase(phase float64) float64 {
	w := math.Mod(phase, twoPi)
	if w < 0 {
		w += twoPi
	}
	// -tiny + 2π rounds up to 2π
	if w >= twoPi {
		w = 0
	}
	return w
}

// normalizedPhase is the wrapped phase as a fraction of the cycle, in [0, 1)
func normalizedPhase(phase float64) float64 {
	return wrapPhase(phase) / twoPi
}

func sinusoid(phase, A float64) float64 {
	return A * math.Sin(phase)
}

// Returns +A for the first half of the cycle, -A for the second half.
// The edge is hard, there is no smoothing.
func squareWave(phase, A float64) float64 {
	if wrapPhase(phase) < math.Pi {
		return A
	}
	return -A
}

// Returns the piecewise linear ramp used by the stored generators:
// A*(2p-0.5) up to the half cycle, then A*(1.5-2p).
// These breakpoints are not a textbook triangle and must stay as they are.
func triangleWave(phase, A float64) float64 {
	p := normalizedPhase(phase)
	if p < 0.5 {
		return A * (2*p - 0.5)
	}
	return A * (1.5 - 2*p)
}

// Returns a linear ramp from -A to +A with an instantaneous reset each cycle
func sawtoothWave(phase, A float64) float64 {
	p := normalizedPhase(phase)
	return A * (2*p - 1)
}

// The base value already encodes the constant level
func flat(_, _ float64) float64 {
	return 0
}
