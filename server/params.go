package metricgen

import (
	"errors"
	"fmt"
	"math"

	Mt "github.com/maroda/metricgen/types"
)

var (
	ErrGeneratorExists   = errors.New("Metric already exists")
	ErrGeneratorNotFound = errors.New("Metric does not exist")
	ErrInvalidParameters = errors.New("invalid parameters")
)

// MinUpdateInterval is the shortest emit interval in seconds
const MinUpdateInterval = 0.1

// DefaultParameters are the values a new generator form starts with
func DefaultParameters() Mt.WaveformParameters {
	return Mt.WaveformParameters{
		WaveformType:   Mt.Sinusoidal,
		BaseValue:      0,
		Amplitude:      20,
		Period:         60,
		PhaseOffset:    0,
		UpdateInterval: 1,
	}
}

// Validate checks the numeric parameters before they reach the store.
// An unknown waveform type is allowed, evaluation treats it as a sinusoid.
func Validate(p Mt.WaveformParameters) error {
	for name, v := range map[string]float64{
		ParamBaseValue:      p.BaseValue,
		ParamAmplitude:      p.Amplitude,
		ParamPeriod:         p.Period,
		ParamPhaseOffset:    p.PhaseOffset,
		ParamUpdateInterval: p.UpdateInterval,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidParameters, name)
		}
	}

	switch {
	case p.Amplitude < 0:
		return fmt.Errorf("%w: amplitude must be >= 0", ErrInvalidParameters)
	case p.Period <= 0:
		return fmt.Errorf("%w: period must be > 0", ErrInvalidParameters)
	case p.UpdateInterval < MinUpdateInterval:
		return fmt.Errorf("%w: update_interval must be >= %s", ErrInvalidParameters, FormatFixed(MinUpdateInterval, 1))
	}
	return nil
}

// ValidName reports if a bare generator name is usable as a metric name:
// letters, digits and underscores only.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
