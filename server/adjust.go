package metricgen

import (
	"fmt"
	"math"

	Mt "github.com/maroda/metricgen/types"
)

// Parameter names as they appear on the wire
const (
	ParamBaseValue      = "base_value"
	ParamAmplitude      = "amplitude"
	ParamPeriod         = "period"
	ParamPhaseOffset    = "phase_offset"
	ParamUpdateInterval = "update_interval"
)

const defaultStep = 0.1

// Adjust moves current by delta, snaps the result to the step grid
// and clamps it into [lo, hi]. Use math.Inf for an open bound.
// A non-positive step falls back to 0.1.
func Adjust(current, delta, step, lo, hi float64) float64 {
	if !(step > 0) {
		step = defaultStep
	}
	if math.IsNaN(lo) {
		lo = math.Inf(-1)
	}
	if math.IsNaN(hi) {
		hi = math.Inf(1)
	}

	v := current + delta
	v = math.Round(v/step) * step
	return math.Max(lo, math.Min(hi, v))
}

// Policy is how a single parameter may be stepped in place
type Policy struct {
	Step     float64
	Min      float64
	Max      float64
	Decimals int // display precision applied after Adjust
	Unit     string
}

// Apply runs Adjust with the policy bounds, then the display rounding.
// Rounding can never leave the bounds because both are on the step grid.
func (pp Policy) Apply(current, delta float64) float64 {
	v := Adjust(current, delta, pp.Step, pp.Min, pp.Max)
	v = FloatPrecise(v, pp.Decimals)
	return math.Max(pp.Min, math.Min(pp.Max, v))
}

// Format renders a value for display using the policy precision and unit
func (pp Policy) Format(v float64) string {
	return FormatFixed(v, pp.Decimals) + pp.Unit
}

// Policies are the live adjustment rules per parameter
var Policies = map[string]Policy{
	ParamBaseValue:      {Step: 0.1, Min: math.Inf(-1), Max: math.Inf(1), Decimals: 1},
	ParamAmplitude:      {Step: 0.1, Min: 0, Max: math.Inf(1), Decimals: 1},
	ParamPeriod:         {Step: 1, Min: 1, Max: math.Inf(1), Decimals: 0, Unit: "s"},
	ParamPhaseOffset:    {Step: 0.1, Min: math.Inf(-1), Max: math.Inf(1), Decimals: 1},
	ParamUpdateInterval: {Step: 0.1, Min: MinUpdateInterval, Max: math.Inf(1), Decimals: 1, Unit: "s"},
}

// PolicyLookup returns the adjustment rule for a parameter name
func PolicyLookup(param string) (Policy, error) {
	pp, ok := Policies[param]
	if !ok {
		return Policy{}, fmt.Errorf("unknown parameter: %s", param)
	}
	return pp, nil
}

// ParamValue reads a numeric parameter out of p
func ParamValue(p Mt.WaveformParameters, param string) (float64, error) {
	switch param {
	case ParamBaseValue:
		return p.BaseValue, nil
	case ParamAmplitude:
		return p.Amplitude, nil
	case ParamPeriod:
		return p.Period, nil
	case ParamPhaseOffset:
		return p.PhaseOffset, nil
	case ParamUpdateInterval:
		return p.UpdateInterval, nil
	default:
		return 0, fmt.Errorf("unknown parameter: %s", param)
	}
}

// SetParam returns a partial update that sets a single numeric parameter
func SetParam(param string, v float64) (Mt.ParameterUpdate, error) {
	var u Mt.ParameterUpdate
	switch param {
	case ParamBaseValue:
		u.BaseValue = &v
	case ParamAmplitude:
		u.Amplitude = &v
	case ParamPeriod:
		u.Period = &v
	case ParamPhaseOffset:
		u.PhaseOffset = &v
	case ParamUpdateInterval:
		u.UpdateInterval = &v
	default:
		return u, fmt.Errorf("unknown parameter: %s", param)
	}
	return u, nil
}

// ApplyUpdate copies only the provided fields of u onto p
func ApplyUpdate(p Mt.WaveformParameters, u Mt.ParameterUpdate) Mt.WaveformParameters {
	if u.WaveformType != nil {
		p.WaveformType = Mt.WaveformType(*u.WaveformType)
	}
	if u.BaseValue != nil {
		p.BaseValue = *u.BaseValue
	}
	if u.Amplitude != nil {
		p.Amplitude = *u.Amplitude
	}
	if u.Period != nil {
		p.Period = *u.Period
	}
	if u.PhaseOffset != nil {
		p.PhaseOffset = *u.PhaseOffset
	}
	if u.UpdateInterval != nil {
		p.UpdateInterval = *u.UpdateInterval
	}
	return p
}
