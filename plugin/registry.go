package plugin

import "fmt"

// Stores is a global map of ConfigStore plugins, keyed by the METRICGEN_STORE value.
var Stores = map[string]func(path string) (ConfigStore, error){
	"json": func(path string) (ConfigStore, error) {
		return NewFileStore(path, FormatJSON), nil
	},
	"yaml": func(path string) (ConfigStore, error) {
		return NewFileStore(path, FormatYAML), nil
	},
	"badger": func(path string) (ConfigStore, error) {
		return NewBadgerStore(path)
	},
}

// DefaultPaths are used when METRICGEN_CONFIG is unset.
// Badger needs a directory, the file stores a single file.
var DefaultPaths = map[string]string{
	"json":   "config.json",
	"yaml":   "config.yaml",
	"badger": "metricgen-badger",
}

// StoreLookup opens the named store at path, or at its default path when empty
func StoreLookup(name, path string) (ConfigStore, error) {
	factory, ok := Stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown store: %s", name)
	}
	if path == "" {
		path = DefaultPaths[name]
	}
	return factory(path)
}
