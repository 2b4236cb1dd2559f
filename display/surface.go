package metricgen

import (
	"encoding/json"
	"sync"
)

// Vec is a point in surface pixels, origin top left
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke describes how a line is drawn.
// An empty Dash is a solid line.
type Stroke struct {
	Color string    `json:"color"`
	Width float64   `json:"width"`
	Dash  []float64 `json:"dash,omitempty"`
}

// TextStyle describes a label, Align is "left" or "center"
type TextStyle struct {
	Color string  `json:"color"`
	Size  float64 `json:"size"`
	Align string  `json:"align"`
}

const (
	AlignLeft   = "left"
	AlignCenter = "center"
)

// Surface is a fixed size 2D drawing target.
// The preview renderer only ever talks to this interface.
type Surface interface {
	Size() (width, height int)
	Clear()
	Line(from, to Vec, st Stroke)
	Polyline(points []Vec, st Stroke)
	Text(at Vec, text string, st TextStyle)
}

// Primitive is one recorded drawing call
type Primitive struct {
	Kind   string     `json:"kind"` // clear, line, polyline, text
	Points []Vec      `json:"points,omitempty"`
	Stroke *Stroke    `json:"stroke,omitempty"`
	Text   string     `json:"text,omitempty"`
	Style  *TextStyle `json:"style,omitempty"`
}

// Recorder is a Surface that keeps the drawing calls,
// the browser replays them onto a canvas.
type Recorder struct {
	MU         sync.Mutex
	Width      int
	Height     int
	Primitives []Primitive
}

func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		Width:  width,
		Height: height,
	}
}

func (r *Recorder) Size() (int, int) {
	return r.Width, r.Height
}

// Clear drops everything drawn so far and records the clear itself
func (r *Recorder) Clear() {
	r.MU.Lock()
	defer r.MU.Unlock()
	r.Primitives = []Primitive{{Kind: "clear"}}
}

func (r *Recorder) Line(from, to Vec, st Stroke) {
	r.record(Primitive{Kind: "line", Points: []Vec{from, to}, Stroke: &st})
}

func (r *Recorder) Polyline(points []Vec, st Stroke) {
	pts := make([]Vec, len(points))
	copy(pts, points)
	r.record(Primitive{Kind: "polyline", Points: pts, Stroke: &st})
}

func (r *Recorder) Text(at Vec, text string, st TextStyle) {
	r.record(Primitive{Kind: "text", Points: []Vec{at}, Text: text, Style: &st})
}

func (r *Recorder) record(p Primitive) {
	r.MU.Lock()
	defer r.MU.Unlock()
	r.Primitives = append(r.Primitives, p)
}

// Kinds lists recorded primitives of one kind, for inspection
func (r *Recorder) Kinds(kind string) []Primitive {
	r.MU.Lock()
	defer r.MU.Unlock()
	var out []Primitive
	for _, p := range r.Primitives {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// MarshalJSON writes the surface size and its primitives
func (r *Recorder) MarshalJSON() ([]byte, error) {
	r.MU.Lock()
	defer r.MU.Unlock()
	return json.Marshal(struct {
		Width      int         `json:"width"`
		Height     int         `json:"height"`
		Primitives []Primitive `json:"primitives"`
	}{r.Width, r.Height, r.Primitives})
}
