package metricgen

import (
	"fmt"
	"slices"
	"sync"

	Ms "github.com/maroda/metricgen/server"
)

// DefaultWindow is the preview window in seconds until one is selected
const DefaultWindow = 120.0

// Windows are the selectable preview windows in seconds: 1m, 2m, 5m, 10m
var Windows = []float64{60, 120, 300, 600}

// Selections is the per-generator time window chosen in the UI.
// Entries are created on first read and overwritten by Select,
// nothing removes them for the life of the process.
type Selections struct {
	MU      sync.RWMutex
	windows map[string]float64
}

func NewSelections() *Selections {
	return &Selections{windows: make(map[string]float64)}
}

// Window returns the selected window, recording the default on first use
func (s *Selections) Window(name string) float64 {
	key := Ms.StoredName(name)

	s.MU.RLock()
	w, ok := s.windows[key]
	s.MU.RUnlock()
	if ok {
		return w
	}

	s.MU.Lock()
	defer s.MU.Unlock()
	if w, ok := s.windows[key]; ok {
		return w
	}
	s.windows[key] = DefaultWindow
	return DefaultWindow
}

// Select sets the window for a generator, only the fixed Windows are accepted
func (s *Selections) Select(name string, window float64) error {
	if !ValidWindow(window) {
		return fmt.Errorf("unsupported time window: %gs", window)
	}
	s.MU.Lock()
	defer s.MU.Unlock()
	s.windows[Ms.StoredName(name)] = window
	return nil
}

func ValidWindow(window float64) bool {
	return slices.Contains(Windows, window)
}

// WindowLabel is the button text of a window, e.g. "2m"
func WindowLabel(window float64) string {
	return fmt.Sprintf("%.0fm", window/60)
}
