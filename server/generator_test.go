package metricgen_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	Mo "github.com/maroda/metricgen/obvy"
	Mp "github.com/maroda/metricgen/plugin"
	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_CreateGenerator(t *testing.T) {
	ctx := context.Background()
	reg, stats, store := makeTestRegistry(t)

	t.Run("Creates with the generator prefix", func(t *testing.T) {
		err := reg.CreateGenerator(ctx, "cpu", Ms.DefaultParameters())
		assertError(t, err, nil)

		_, ok := reg.Params("generator_cpu")
		if !ok {
			t.Fatalf("generator_cpu was not created")
		}
		assertFloat(t, testutil.ToFloat64(stats.MetricsTotal), 1)
		assertFloat(t, testutil.ToFloat64(stats.MetricsActive), 1)
	})

	t.Run("Persists to the store", func(t *testing.T) {
		stored, err := store.Load()
		assertError(t, err, nil)
		if _, ok := stored["generator_cpu"]; !ok {
			t.Errorf("store is missing generator_cpu: %+v", stored)
		}
	})

	t.Run("Rejects duplicates with or without prefix", func(t *testing.T) {
		err := reg.CreateGenerator(ctx, "cpu", Ms.DefaultParameters())
		assertError(t, err, Ms.ErrGeneratorExists)
		err = reg.CreateGenerator(ctx, "generator_cpu", Ms.DefaultParameters())
		assertError(t, err, Ms.ErrGeneratorExists)
	})

	t.Run("Rejects invalid parameters", func(t *testing.T) {
		p := Ms.DefaultParameters()
		p.Period = 0
		err := reg.CreateGenerator(ctx, "broken", p)
		assertError(t, err, Ms.ErrInvalidParameters)
	})

	t.Run("Rejects an interval below the floor", func(t *testing.T) {
		p := Ms.DefaultParameters()
		p.UpdateInterval = 1e-12
		err := reg.CreateGenerator(ctx, "spinner", p)
		assertError(t, err, Ms.ErrInvalidParameters)
		if _, ok := reg.Params("generator_spinner"); ok {
			t.Errorf("generator_spinner was created")
		}

		tiny := 0.05
		err = reg.UpdateGenerator(ctx, "cpu", Mt.ParameterUpdate{UpdateInterval: &tiny})
		assertError(t, err, Ms.ErrInvalidParameters)
	})

	t.Run("Rejects names prometheus cannot use", func(t *testing.T) {
		err := reg.CreateGenerator(ctx, "cpu-load", Ms.DefaultParameters())
		assertError(t, err, Ms.ErrInvalidParameters)
	})
}

func TestRegistry_Emitter(t *testing.T) {
	ctx := context.Background()
	reg, stats, _ := makeTestRegistry(t)
	reg.Now = func() time.Time { return time.Unix(15, 0) }

	p := Mt.WaveformParameters{WaveformType: Mt.Sinusoidal, BaseValue: 50, Amplitude: 20, Period: 60, UpdateInterval: Ms.MinUpdateInterval}
	err := reg.CreateGenerator(ctx, "peak", p)
	assertError(t, err, nil)

	t.Run("Sets the gauge to the current value", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return strings.Contains(scrape(t, stats), "generator_peak 70")
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Picks up updates on the next tick", func(t *testing.T) {
		base := 100.0
		err := reg.UpdateGenerator(ctx, "peak", Mt.ParameterUpdate{BaseValue: &base})
		assertError(t, err, nil)

		assert.Eventually(t, func() bool {
			return strings.Contains(scrape(t, stats), "generator_peak 120")
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Removal unregisters the gauge", func(t *testing.T) {
		err := reg.RemoveGenerator(ctx, "generator_peak")
		assertError(t, err, nil)

		if strings.Contains(scrape(t, stats), "generator_peak") {
			t.Errorf("generator_peak is still exported")
		}
		assertFloat(t, testutil.ToFloat64(stats.MetricsActive), 0)
	})
}

func TestRegistry_UpdateGenerator(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := makeTestRegistry(t)
	assertError(t, reg.CreateGenerator(ctx, "disk", Ms.DefaultParameters()), nil)

	t.Run("Applies only provided fields", func(t *testing.T) {
		amp := 3.5
		wt := "square"
		err := reg.UpdateGenerator(ctx, "disk", Mt.ParameterUpdate{Amplitude: &amp, WaveformType: &wt})
		assertError(t, err, nil)

		got, _ := reg.Params("disk")
		assertFloat(t, got.Amplitude, 3.5)
		assertFloat(t, got.Period, 60)
		if got.WaveformType != Mt.Square {
			t.Errorf("waveform = %q, want square", got.WaveformType)
		}
	})

	t.Run("Keeps the old values when the update is invalid", func(t *testing.T) {
		period := -1.0
		err := reg.UpdateGenerator(ctx, "disk", Mt.ParameterUpdate{Period: &period})
		assertError(t, err, Ms.ErrInvalidParameters)

		got, _ := reg.Params("disk")
		assertFloat(t, got.Period, 60)
	})

	t.Run("Unknown generator", func(t *testing.T) {
		err := reg.UpdateGenerator(ctx, "nope", Mt.ParameterUpdate{})
		assertError(t, err, Ms.ErrGeneratorNotFound)
	})
}

func TestRegistry_RemoveGenerator(t *testing.T) {
	ctx := context.Background()
	reg, _, store := makeTestRegistry(t)
	assertError(t, reg.CreateGenerator(ctx, "net", Ms.DefaultParameters()), nil)

	t.Run("Removes and persists", func(t *testing.T) {
		assertError(t, reg.RemoveGenerator(ctx, "net"), nil)

		stored, err := store.Load()
		assertError(t, err, nil)
		assertInt(t, len(stored), 0)
	})

	t.Run("Unknown generator", func(t *testing.T) {
		assertError(t, reg.RemoveGenerator(ctx, "net"), Ms.ErrGeneratorNotFound)
	})
}

func TestRegistry_StoreFailure(t *testing.T) {
	ctx := context.Background()
	reg := Ms.NewRegistry(&FailingStore{}, Mo.NewStatsInternal())
	defer reg.Close()

	t.Run("Create does not commit when the save fails", func(t *testing.T) {
		err := reg.CreateGenerator(ctx, "cpu", Ms.DefaultParameters())
		assertGotError(t, err)

		config, _ := reg.CurrentConfig(ctx)
		assertInt(t, len(config.Metrics), 0)
	})
}

func TestRegistry_Restore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	legacy := `{"metrics": {
  "cpu": {"waveform_type": "sinusoidal", "base_value": 1, "amplitude": 1, "period": 60, "phase_offset": 0, "update_interval": 1},
  "generator_mem": {"waveform_type": "static", "base_value": 2, "amplitude": 0, "period": 60, "phase_offset": 0, "update_interval": 1}
}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	store := Mp.NewFileStore(path, Mp.FormatJSON)
	reg := Ms.NewRegistry(store, Mo.NewStatsInternal())
	defer reg.Close()

	err := reg.Restore()
	assertError(t, err, nil)

	t.Run("Logs the restore once", func(t *testing.T) {
		assertInt(t, strings.Count(buf.String(), "Generators restored"), 1)
		assertStringContains(t, buf.String(), "count=2")
		assertStringContains(t, buf.String(), "store=JSONFile")
	})

	t.Run("Prefixes legacy names", func(t *testing.T) {
		names := reg.Names()
		assertInt(t, len(names), 2)
		assertStringContains(t, strings.Join(names, ","), "generator_cpu,generator_mem")
	})

	t.Run("Rewrites the store", func(t *testing.T) {
		stored, err := store.Load()
		assertError(t, err, nil)
		if _, ok := stored["cpu"]; ok {
			t.Errorf("legacy name still stored")
		}
		if _, ok := stored["generator_cpu"]; !ok {
			t.Errorf("generator_cpu not stored")
		}
	})
}

func TestRegistry_RestoreSkipsUnusableNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	legacy := `{"metrics": {
  "cpu-load": {"waveform_type": "sinusoidal", "base_value": 1, "amplitude": 1, "period": 60, "phase_offset": 0, "update_interval": 1},
  "generator_disk": {"waveform_type": "static", "base_value": 2, "amplitude": 0, "period": 60, "phase_offset": 0, "update_interval": 1}
}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	stats := Mo.NewStatsInternal()
	reg := Ms.NewRegistry(Mp.NewFileStore(path, Mp.FormatJSON), stats)
	defer reg.Close()

	err := reg.Restore()
	assertError(t, err, nil)

	assert.Equal(t, []string{"generator_disk"}, reg.Names())
	assertFloat(t, testutil.ToFloat64(stats.MetricsActive), 1)
}

func TestIntervalDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Ms.IntervalDuration(0.5))
	assert.Equal(t, time.Second, Ms.IntervalDuration(0))
	assert.Equal(t, time.Second, Ms.IntervalDuration(-3))

	t.Run("Tiny intervals are floored", func(t *testing.T) {
		assert.Equal(t, 100*time.Millisecond, Ms.IntervalDuration(1e-12))
		assert.Equal(t, 100*time.Millisecond, Ms.IntervalDuration(0.01))
	})
}

// Helpers //

// FailingStore loads nothing and refuses every save
type FailingStore struct{}

func (fs *FailingStore) Load() (map[string]Mt.WaveformParameters, error) {
	return map[string]Mt.WaveformParameters{}, nil
}
func (fs *FailingStore) Save(map[string]Mt.WaveformParameters) error {
	return errors.New("disk full")
}
func (fs *FailingStore) Close() error { return nil }
func (fs *FailingStore) Type() string { return "FailingMock" }

func makeTestRegistry(t *testing.T) (*Ms.Registry, *Mo.StatsInternal, Mp.ConfigStore) {
	t.Helper()
	store := Mp.NewFileStore(filepath.Join(t.TempDir(), "config.json"), Mp.FormatJSON)
	stats := Mo.NewStatsInternal()
	reg := Ms.NewRegistry(store, stats)
	t.Cleanup(reg.Close)
	return reg, stats, store
}

func scrape(t *testing.T, stats *Mo.StatsInternal) string {
	t.Helper()
	families, err := stats.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var b strings.Builder
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				b.WriteString(mf.GetName())
				b.WriteString(" ")
				b.WriteString(Ms.FormatFixed(m.GetGauge().GetValue(), 0))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %f, want %f", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}
