package plugin

/*
	FileStore

	Keeps the generator definitions in a single file,
	{"metrics": {...}} as JSON indented by two spaces, or the same shape in YAML.
*/

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	Mt "github.com/maroda/metricgen/types"
	"gopkg.in/yaml.v2"
)

type FileFormat int

const (
	FormatJSON FileFormat = iota
	FormatYAML
)

type FileStore struct {
	MU     sync.Mutex
	Path   string
	Format FileFormat
}

func NewFileStore(path string, format FileFormat) *FileStore {
	return &FileStore{
		Path:   path,
		Format: format,
	}
}

// Load returns an empty set when the file does not exist yet
func (f *FileStore) Load() (map[string]Mt.WaveformParameters, error) {
	f.MU.Lock()
	defer f.MU.Unlock()

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("FileStore has no config yet", slog.String("path", f.Path))
		return map[string]Mt.WaveformParameters{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// An empty file is treated like a missing one
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]Mt.WaveformParameters{}, nil
	}

	var config Mt.Config
	switch f.Format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		slog.Error("could not decode config", slog.String("path", f.Path), slog.Any("Error", err))
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if config.Metrics == nil {
		config.Metrics = map[string]Mt.WaveformParameters{}
	}
	return config.Metrics, nil
}

// Save writes to a temp file first and renames it over the config,
// so a crash never leaves half a file behind.
func (f *FileStore) Save(metrics map[string]Mt.WaveformParameters) error {
	f.MU.Lock()
	defer f.MU.Unlock()

	config := Mt.Config{Metrics: metrics}
	if config.Metrics == nil {
		config.Metrics = map[string]Mt.WaveformParameters{}
	}

	var data []byte
	var err error
	switch f.Format {
	case FormatYAML:
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".metricgen-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}

	slog.Debug("FileStore saved", slog.String("path", f.Path), slog.Int("count", len(metrics)))
	return nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) Type() string {
	if f.Format == FormatYAML {
		return "YAMLFile"
	}
	return "JSONFile"
}
