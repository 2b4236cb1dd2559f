package plugin_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	Mp "github.com/maroda/metricgen/plugin"
)

func TestStoreLookup(t *testing.T) {
	dir := t.TempDir()

	t.Run("Returns known file stores", func(t *testing.T) {
		tests := []struct {
			name string
			want string
		}{
			{"json", "JSONFile"},
			{"yaml", "YAMLFile"},
		}
		for _, tt := range tests {
			got, err := Mp.StoreLookup(tt.name, filepath.Join(dir, "config."+tt.name))
			assertError(t, err, nil)
			assertStringContains(t, got.Type(), tt.want)
		}
	})

	t.Run("Returns badger store", func(t *testing.T) {
		got, err := Mp.StoreLookup("badger", filepath.Join(dir, "badger"))
		assertError(t, err, nil)
		defer got.Close()
		assertStringContains(t, got.Type(), "BadgerDB")
	})

	t.Run("Empty path picks a default per store", func(t *testing.T) {
		for _, name := range []string{"json", "yaml"} {
			got, err := Mp.StoreLookup(name, "")
			assertError(t, err, nil)
			fs, ok := got.(*Mp.FileStore)
			if !ok {
				t.Fatalf("%s: got %T, want *FileStore", name, got)
			}
			assertString(t, fs.Path, "config."+name)
		}
		for name := range Mp.Stores {
			if Mp.DefaultPaths[name] == "" {
				t.Errorf("no default path for store %s", name)
			}
		}
		if strings.HasSuffix(Mp.DefaultPaths["badger"], ".json") {
			t.Errorf("badger default %q looks like a file", Mp.DefaultPaths["badger"])
		}
	})

	t.Run("Returns error if store doesn't exist", func(t *testing.T) {
		unknown := "craquemattic"
		_, err := Mp.StoreLookup(unknown, dir)
		assertGotError(t, err)
	})
}

// Helpers //

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

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %q, want %q", got, want)
	}
}
