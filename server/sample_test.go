package metricgen_test

import (
	"testing"

	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
	"github.com/stretchr/testify/assert"
)

func TestSampleCurve(t *testing.T) {
	p := Mt.WaveformParameters{WaveformType: Mt.Sinusoidal, BaseValue: 50, Amplitude: 20, Period: 60}

	t.Run("Samples both ends of the window", func(t *testing.T) {
		curve := Ms.SampleCurve(p, 120, Ms.PreviewPoints)
		assert.Len(t, curve, 201)
		assert.Equal(t, 0.0, curve[0].Time)
		assert.Equal(t, 120.0, curve[200].Time)
	})

	t.Run("Quarter period sample is the peak", func(t *testing.T) {
		curve := Ms.SampleCurve(p, 120, Ms.PreviewPoints)
		// i=25 is (25/200)*120 = 15s
		assert.InDelta(t, 15.0, curve[25].Time, tolerance)
		assert.InDelta(t, 70.0, curve[25].Value, tolerance)
	})

	t.Run("Non-positive point count uses the default", func(t *testing.T) {
		assert.Len(t, Ms.SampleCurve(p, 60, 0), Ms.PreviewPoints+1)
	})

	t.Run("A new window re-samples without touching the parameters", func(t *testing.T) {
		before := p
		short := Ms.SampleCurve(p, 60, Ms.PreviewPoints)
		long := Ms.SampleCurve(p, 600, Ms.PreviewPoints)

		assert.Equal(t, before, p)
		assert.Equal(t, 60.0, short[200].Time)
		assert.Equal(t, 600.0, long[200].Time)
		assert.InDelta(t, short[100].Value, Ms.Evaluate(p, 30), tolerance)
		assert.InDelta(t, long[100].Value, Ms.Evaluate(p, 300), tolerance)
	})

	t.Run("Sampling twice gives the same curve", func(t *testing.T) {
		assert.Equal(t, Ms.SampleCurve(p, 300, 50), Ms.SampleCurve(p, 300, 50))
	})
}

func TestRange(t *testing.T) {
	t.Run("Base plus and minus amplitude", func(t *testing.T) {
		lo, hi := Ms.Range(Mt.WaveformParameters{BaseValue: 50, Amplitude: 20, Period: 60})
		assert.Equal(t, 30.0, lo)
		assert.Equal(t, 70.0, hi)
	})

	t.Run("Static generators have no spread", func(t *testing.T) {
		lo, hi := Ms.Range(Mt.WaveformParameters{WaveformType: Mt.Static, BaseValue: 7, Amplitude: 20})
		assert.Equal(t, 7.0, lo)
		assert.Equal(t, 7.0, hi)
	})

	t.Run("Card summary text", func(t *testing.T) {
		got := Ms.RangeText(Mt.WaveformParameters{BaseValue: 50, Amplitude: 20, Period: 60})
		assert.Equal(t, "Min: 30.0 | Max: 70.0", got)
	})
}
