package metricgen_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	Ms "github.com/maroda/metricgen/server"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses defaults", func(t *testing.T) {
		s, err := Ms.LoadSettingsWith(ctx, envconfig.MapLookuper(map[string]string{}))
		assertError(t, err, nil)
		assertInt(t, s.WebPort, 8001)
		assertInt(t, s.PrometheusPort, 9100)
		assertString(t, s.ConfigPath, "")
		assertString(t, s.Store, "json")
		if s.Refresh != 5*time.Second {
			t.Errorf("Refresh = %s, want 5s", s.Refresh)
		}
	})

	t.Run("Reads the environment", func(t *testing.T) {
		s, err := Ms.LoadSettingsWith(ctx, envconfig.MapLookuper(map[string]string{
			"WEB_PORT":          "8080",
			"METRICGEN_STORE":   "badger",
			"METRICGEN_REFRESH": "250ms",
		}))
		assertError(t, err, nil)
		assertInt(t, s.WebPort, 8080)
		assertString(t, s.Store, "badger")
		if s.Refresh != 250*time.Millisecond {
			t.Errorf("Refresh = %s, want 250ms", s.Refresh)
		}
	})

	t.Run("Rejects a bad port", func(t *testing.T) {
		_, err := Ms.LoadSettingsWith(ctx, envconfig.MapLookuper(map[string]string{"WEB_PORT": "70000"}))
		assertGotError(t, err)
	})

	t.Run("Rejects garbage", func(t *testing.T) {
		_, err := Ms.LoadSettingsWith(ctx, envconfig.MapLookuper(map[string]string{"PROMETHEUS_PORT": "craquemattic"}))
		assertGotError(t, err)
	})

	t.Run("Builds a logger", func(t *testing.T) {
		s, _ := Ms.LoadSettingsWith(ctx, envconfig.MapLookuper(map[string]string{"METRICGEN_LOG_FORMAT": "json", "METRICGEN_LOG_LEVEL": "debug"}))
		if !s.Logger(io.Discard).Enabled(ctx, slog.LevelDebug) {
			t.Errorf("debug should be enabled")
		}
	})
}
