package metricgen

import (
	"fmt"
	"log/slog"
	"sync"

	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
)

const (
	gridRows    = 8
	gridColumns = 12
	timeLabels  = 6
)

// Preview palette
var (
	gridStroke  = Stroke{Color: "#e0e0e0", Width: 1}
	axisStroke  = Stroke{Color: "#b0b0b0", Width: 2}
	curveStroke = Stroke{Color: "#667eea", Width: 2}
	baseStroke  = Stroke{Color: "#e74c3c", Width: 2, Dash: []float64{5, 5}}

	valueText = TextStyle{Color: "#2c3e50", Size: 12, Align: AlignLeft}
	baseText  = TextStyle{Color: "#e74c3c", Size: 12, Align: AlignLeft}
	timeText  = TextStyle{Color: "#2c3e50", Size: 10, Align: AlignCenter}
)

// Label is a piece of text placed on the surface
type Label struct {
	At   Vec    `json:"at"`
	Text string `json:"text"`
}

// Geometry is everything the preview draws, in surface pixels
type Geometry struct {
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Window     float64         `json:"window"`
	Min        float64         `json:"min"`
	Max        float64         `json:"max"`
	Range      float64         `json:"range"`
	BaseY      float64         `json:"base_y"`
	HGrid      []float64       `json:"h_grid"`
	VGrid      []float64       `json:"v_grid"`
	Curve      Mt.SampledCurve `json:"curve"`
	Points     []Vec           `json:"points"`
	TimeLabels []Label         `json:"time_labels"`
}

// Y maps a value to its pixel row.
// With no range every value sits at mid-height.
func (g Geometry) Y(value float64) float64 {
	if g.Range == 0 {
		return g.Height / 2
	}
	return g.Height - ((value-g.Min)/g.Range)*g.Height
}

// ComputeGeometry samples p across the window and lays it out on a width x height surface
func ComputeGeometry(p Mt.WaveformParameters, window float64, width, height int) Geometry {
	if !(window > 0) {
		window = DefaultWindow
	}

	lo, hi := Ms.Range(p)
	g := Geometry{
		Width:  float64(width),
		Height: float64(height),
		Window: window,
		Min:    lo,
		Max:    hi,
		Range:  hi - lo,
	}

	for i := 0; i <= gridRows; i++ {
		g.HGrid = append(g.HGrid, (float64(i)/gridRows)*g.Height)
	}
	for i := 0; i <= gridColumns; i++ {
		g.VGrid = append(g.VGrid, (float64(i)/gridColumns)*g.Width)
	}

	g.Curve = Ms.SampleCurve(p, window, Ms.PreviewPoints)
	g.Points = make([]Vec, len(g.Curve))
	for i, pt := range g.Curve {
		g.Points[i] = Vec{
			X: (float64(i) / Ms.PreviewPoints) * g.Width,
			Y: g.Y(pt.Value),
		}
	}

	g.BaseY = g.Y(p.BaseValue)

	for i := 0; i <= timeLabels; i++ {
		frac := float64(i) / timeLabels
		g.TimeLabels = append(g.TimeLabels, Label{
			At:   Vec{X: frac * g.Width, Y: g.Height - 20},
			Text: Ms.FormatFixed(frac*window, 0) + "s",
		})
	}

	return g
}

// Draw renders the preview of p over window seconds onto s.
// Drawing the same inputs twice gives the same primitives.
func Draw(s Surface, p Mt.WaveformParameters, window float64) Geometry {
	width, height := s.Size()
	g := ComputeGeometry(p, window, width, height)
	w, h := g.Width, g.Height

	s.Clear()

	for _, y := range g.HGrid {
		s.Line(Vec{0, y}, Vec{w, y}, gridStroke)
	}
	for _, x := range g.VGrid {
		s.Line(Vec{x, 0}, Vec{x, h}, gridStroke)
	}
	s.Line(Vec{0, h / 2}, Vec{w, h / 2}, axisStroke)
	s.Line(Vec{w / 2, 0}, Vec{w / 2, h}, axisStroke)

	s.Polyline(g.Points, curveStroke)

	s.Text(Vec{5, 15}, Ms.FormatFixed(g.Max, 1), valueText)
	s.Text(Vec{5, h - 5}, Ms.FormatFixed(g.Min, 1), valueText)

	s.Line(Vec{0, g.BaseY}, Vec{w, g.BaseY}, baseStroke)
	s.Text(Vec{w - 80, g.BaseY - 5}, "Base: "+Ms.FormatFixed(p.BaseValue, 1), baseText)

	for _, l := range g.TimeLabels {
		s.Text(l.At, l.Text, timeText)
	}

	slog.Debug("Preview drawn",
		slog.Float64("window", g.Window),
		slog.Float64("min", g.Min),
		slog.Float64("max", g.Max))
	return g
}

// PreviewKey is the stable key of a generator's drawing target
func PreviewKey(name string) string {
	return "preview-" + Ms.StoredName(name)
}

// Targets holds the drawing surfaces currently on display, by preview key
type Targets struct {
	MU       sync.RWMutex
	surfaces map[string]Surface
}

func NewTargets() *Targets {
	return &Targets{surfaces: make(map[string]Surface)}
}

func (t *Targets) Attach(key string, s Surface) {
	t.MU.Lock()
	defer t.MU.Unlock()
	t.surfaces[key] = s
}

func (t *Targets) Detach(key string) {
	t.MU.Lock()
	defer t.MU.Unlock()
	delete(t.surfaces, key)
}

func (t *Targets) Lookup(key string) (Surface, bool) {
	t.MU.RLock()
	defer t.MU.RUnlock()
	s, ok := t.surfaces[key]
	return s, ok
}

// RenderTarget draws the named generator onto its attached surface.
// A missing surface is logged and the draw is skipped, it is never an error.
func RenderTarget(t *Targets, name string, p Mt.WaveformParameters, window float64) bool {
	key := PreviewKey(name)
	s, ok := t.Lookup(key)
	if !ok {
		slog.Warn("Preview target not found", slog.String("key", key))
		return false
	}
	Draw(s, p, window)
	return true
}

// String is used by the terminal status line
func (g Geometry) String() string {
	return fmt.Sprintf("%.0fs window, %s..%s", g.Window, Ms.FormatFixed(g.Min, 1), Ms.FormatFixed(g.Max, 1))
}
