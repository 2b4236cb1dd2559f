package metricgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Settings are the process configuration, read from the environment
type Settings struct {
	WebPort        int           `env:"WEB_PORT, default=8001"`
	PrometheusPort int           `env:"PROMETHEUS_PORT, default=9100"`
	ConfigPath     string        `env:"METRICGEN_CONFIG"` // empty picks the store default
	Store          string        `env:"METRICGEN_STORE, default=json"`
	Refresh        time.Duration `env:"METRICGEN_REFRESH, default=5s"`
	OTel           string        `env:"METRICGEN_OTEL, default=none"`
	Collaborator   string        `env:"METRICGEN_COLLABORATOR, default=http://localhost:8001"`
	PreviewWidth   int           `env:"METRICGEN_PREVIEW_WIDTH, default=600"`
	PreviewHeight  int           `env:"METRICGEN_PREVIEW_HEIGHT, default=200"`
	LogFormat      string        `env:"METRICGEN_LOG_FORMAT, default=text"`
	LogLevel       string        `env:"METRICGEN_LOG_LEVEL, default=info"`
}

// LoadSettings reads Settings from the process environment
func LoadSettings(ctx context.Context) (*Settings, error) {
	return LoadSettingsWith(ctx, envconfig.OsLookuper())
}

// LoadSettingsWith reads Settings from any lookuper, used by tests
func LoadSettingsWith(ctx context.Context, l envconfig.Lookuper) (*Settings, error) {
	var s Settings
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &s,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("could not read settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch {
	case s.WebPort <= 0 || s.WebPort > 65535:
		return fmt.Errorf("WEB_PORT out of range: %d", s.WebPort)
	case s.PrometheusPort <= 0 || s.PrometheusPort > 65535:
		return fmt.Errorf("PROMETHEUS_PORT out of range: %d", s.PrometheusPort)
	case s.Refresh <= 0:
		return fmt.Errorf("METRICGEN_REFRESH must be positive: %s", s.Refresh)
	case s.PreviewWidth <= 0 || s.PreviewHeight <= 0:
		return fmt.Errorf("preview size must be positive: %dx%d", s.PreviewWidth, s.PreviewHeight)
	}
	return nil
}

// Logger builds the slog handler named by LogFormat and LogLevel, writing to w
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(s.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
