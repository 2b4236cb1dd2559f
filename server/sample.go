package metricgen

import (
	Mt "github.com/maroda/metricgen/types"
)

// PreviewPoints is the number of intervals the preview is sampled at,
// which gives PreviewPoints+1 samples including both ends of the window.
const PreviewPoints = 200

// SampleCurve evaluates p at points+1 evenly spaced times across the window,
// sample i is taken at (i/points) * window.
// A non-positive points count falls back to PreviewPoints.
func SampleCurve(p Mt.WaveformParameters, window float64, points int) Mt.SampledCurve {
	if points <= 0 {
		points = PreviewPoints
	}

	p = Normalize(p)
	curve := make(Mt.SampledCurve, 0, points+1)
	for i := 0; i <= points; i++ {
		t := SampleTime(i, points, window)
		curve = append(curve, Mt.Point{
			Time:  t,
			Value: Evaluate(p, t),
		})
	}
	return curve
}

// SampleTime is the simulated time of sample i
func SampleTime(i, points int, window float64) float64 {
	return (float64(i) / float64(points)) * window
}

// Range is the min and max the generator can reach
func Range(p Mt.WaveformParameters) (float64, float64) {
	p = Normalize(p)
	return p.BaseValue - p.Amplitude, p.BaseValue + p.Amplitude
}

// RangeText is the card summary, e.g. "Min: 30.0 | Max: 70.0"
func RangeText(p Mt.WaveformParameters) string {
	lo, hi := Range(p)
	return "Min: " + FormatFixed(lo, 1) + " | Max: " + FormatFixed(hi, 1)
}
