package plugin

/*

	The Adapter sits aside /metricgen/
	Contains core interfaces for Plugin

*/

import (
	Mt "github.com/maroda/metricgen/types"
)

// ConfigStore is a place for generator definitions to live between runs.
// Save always receives the full set, stores replace what they held before.
type ConfigStore interface {
	Load() (map[string]Mt.WaveformParameters, error) // Every stored generator by name
	Save(metrics map[string]Mt.WaveformParameters) error
	Close() error // Close the store and release resources
	Type() string // ID for the store
}
