package plugin_test

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/badger/v4"
	Mp "github.com/maroda/metricgen/plugin"
	Mt "github.com/maroda/metricgen/types"
)

func TestNewBadgerStore(t *testing.T) {
	store, closedb := makeTestBadgerStore(t)
	defer closedb()

	t.Run("Opens a store on disk", func(t *testing.T) {
		got, err := Mp.NewBadgerStore(t.TempDir())
		assertError(t, err, nil)
		defer got.Close()
		assertStringContains(t, got.Type(), "BadgerDB")
	})

	t.Run("Returns Type", func(t *testing.T) {
		want := "BadgerDB"
		got := store.Type()
		assertStringContains(t, got, want)
	})
}

func TestBadgerStore_SaveLoad(t *testing.T) {
	store, closedb := makeTestBadgerStore(t)
	defer closedb()

	metrics := map[string]Mt.WaveformParameters{
		"generator_cpu":  {WaveformType: Mt.Sinusoidal, BaseValue: 50, Amplitude: 20, Period: 60, UpdateInterval: 1},
		"generator_disk": {WaveformType: Mt.Sawtooth, BaseValue: 10, Amplitude: 5, Period: 30, PhaseOffset: 1.5, UpdateInterval: 0.5},
	}

	t.Run("Empty store loads nothing", func(t *testing.T) {
		got, err := store.Load()
		assertError(t, err, nil)
		assertInt(t, len(got), 0)
	})

	t.Run("Saves and loads generators", func(t *testing.T) {
		err := store.Save(metrics)
		assertError(t, err, nil)

		got, err := store.Load()
		assertError(t, err, nil)
		assertInt(t, len(got), len(metrics))

		for name, want := range metrics {
			if got[name] != want {
				t.Errorf("Load()[%s] = %+v, want %+v", name, got[name], want)
			}
		}
	})

	t.Run("Save removes generators no longer present", func(t *testing.T) {
		err := store.Save(map[string]Mt.WaveformParameters{"generator_cpu": metrics["generator_cpu"]})
		assertError(t, err, nil)

		got, err := store.Load()
		assertError(t, err, nil)
		assertInt(t, len(got), 1)
		if _, ok := got["generator_disk"]; ok {
			t.Errorf("generator_disk should have been deleted")
		}
	})
}

func TestBadgerStore_GeneratorKey(t *testing.T) {
	t.Run("Makes a prefixed key", func(t *testing.T) {
		want := []byte("generator/generator_cpu")
		got := Mp.GeneratorKey("generator_cpu")
		if !bytes.Equal(want, got) {
			t.Errorf("GeneratorKey = %s, want %s", got, want)
		}
	})
}

func TestBadgerStore_ParamsEncode(t *testing.T) {
	p := &Mt.WaveformParameters{WaveformType: Mt.Triangle, BaseValue: -3, Amplitude: 1, Period: 10, UpdateInterval: 1}

	t.Run("Decodes what it encodes", func(t *testing.T) {
		data, err := Mp.ParamsEncode(p)
		assertError(t, err, nil)

		got, err := Mp.ParamsDecode(data)
		assertError(t, err, nil)
		if *got != *p {
			t.Errorf("ParamsDecode = %+v, want %+v", *got, *p)
		}
	})

	t.Run("Errors on garbage", func(t *testing.T) {
		_, err := Mp.ParamsDecode([]byte("craquemattic"))
		assertGotError(t, err)
	})
}

// Helpers //

func makeTestBadgerStore(t *testing.T) (*Mp.BadgerStore, func()) {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	assertError(t, err, nil)

	store := &Mp.BadgerStore{DB: db}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}
