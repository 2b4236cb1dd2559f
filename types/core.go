package types

/*

	These are the core types of metricgen,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no constructors defined here.
	Methods that need behaviour live with the package that owns it.

*/

// WaveformType is the shape function applied to the phase
type WaveformType string

const (
	Sinusoidal WaveformType = "sinusoidal"
	Square     WaveformType = "square"
	Triangle   WaveformType = "triangle"
	Sawtooth   WaveformType = "sawtooth"
	Static     WaveformType = "static"
)

// GeneratorPrefix is prepended to every stored generator name.
// Users never type it, the UI strips it for labels.
const GeneratorPrefix = "generator_"

// WaveformParameters describe a single generator.
// The JSON and YAML field names are the stored config format.
// Period and UpdateInterval are seconds, PhaseOffset is radians.
type WaveformParameters struct {
	WaveformType   WaveformType `json:"waveform_type" yaml:"waveform_type" mapstructure:"waveform_type"`
	BaseValue      float64      `json:"base_value" yaml:"base_value" mapstructure:"base_value"`
	Amplitude      float64      `json:"amplitude" yaml:"amplitude" mapstructure:"amplitude"`
	Period         float64      `json:"period" yaml:"period" mapstructure:"period"`
	PhaseOffset    float64      `json:"phase_offset" yaml:"phase_offset" mapstructure:"phase_offset"`
	UpdateInterval float64      `json:"update_interval" yaml:"update_interval" mapstructure:"update_interval"`
}

// ParameterUpdate is a partial WaveformParameters,
// nil fields are left untouched by an update.
type ParameterUpdate struct {
	WaveformType   *string  `mapstructure:"waveform_type"`
	BaseValue      *float64 `mapstructure:"base_value"`
	Amplitude      *float64 `mapstructure:"amplitude"`
	Period         *float64 `mapstructure:"period"`
	PhaseOffset    *float64 `mapstructure:"phase_offset"`
	UpdateInterval *float64 `mapstructure:"update_interval"`
}

// Config is the full collaborator snapshot, keyed by generator name
type Config struct {
	Metrics map[string]WaveformParameters `json:"metrics" yaml:"metrics"`
}

// Result is the answer to every mutating collaborator call
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Point is one sample of the curve: simulated time and value
type Point struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// SampledCurve is derived, never persisted
type SampledCurve []Point
