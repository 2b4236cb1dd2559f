package metricgen

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
)

// Virtual pixels per terminal cell, so the preview
// lays out the same way it does in an image.
const (
	cellWidth  = 8
	cellHeight = 16
)

func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)

	// New screen
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("could not get new screen: %w", err)
	}

	// Initialize screen
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize screen: %w", err)
	}
	s.SetStyle(defStyle)
	s.EnablePaste()
	s.Clear()

	return s, nil
}

// WriteBar shows a long bar for the amount entered
// x1 = starting X axis (from left), x2 = ending X axis (from left)
// y1 = starting Y axis (from top), y2 = ending Y axis (from top)
func WriteBar(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style) {
	for row := y1; row < y2; row++ {
		for col := x1; col < x2; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}

// TermSurface is a Surface on a rectangle of terminal cells.
// Coordinates are virtual pixels, cellWidth x cellHeight to a cell.
type TermSurface struct {
	Screen tcell.Screen
	X, Y   int // top left cell
	Cols   int
	Rows   int
}

func NewTermSurface(s tcell.Screen, x, y, cols, rows int) *TermSurface {
	return &TermSurface{
		Screen: s,
		X:      x,
		Y:      y,
		Cols:   max(cols, 1),
		Rows:   max(rows, 1),
	}
}

func (t *TermSurface) Size() (int, int) {
	return t.Cols * cellWidth, t.Rows * cellHeight
}

func (t *TermSurface) Clear() {
	WriteBar(t.Screen, t.X, t.Y, t.X+t.Cols, t.Y+t.Rows, tcell.StyleDefault.Background(tcell.ColorBlack))
}

// cell maps a virtual pixel to its cell, ok is false outside the surface
func (t *TermSurface) cell(at Vec) (int, int, bool) {
	col := int(math.Floor(at.X / cellWidth))
	row := int(math.Floor(at.Y / cellHeight))
	// the far edges belong to the last cell
	if col == t.Cols && at.X == float64(t.Cols*cellWidth) {
		col--
	}
	if row == t.Rows && at.Y == float64(t.Rows*cellHeight) {
		row--
	}
	if col < 0 || row < 0 || col >= t.Cols || row >= t.Rows {
		return 0, 0, false
	}
	return col, row, true
}

func (t *TermSurface) Line(from, to Vec, st Stroke) {
	c0, r0, ok0 := t.cell(clampVec(from, t))
	c1, r1, ok1 := t.cell(clampVec(to, t))
	if !ok0 || !ok1 {
		return
	}

	glyph := lineGlyph(c0, r0, c1, r1, st)
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.GetColor(st.Color))

	// Bresenham over cells, dashed strokes skip every other pair
	dc, dr := abs(c1-c0), -abs(r1-r0)
	sc, sr := sign(c1-c0), sign(r1-r0)
	e := dc + dr
	for step := 0; ; step++ {
		if len(st.Dash) == 0 || (step/2)%2 == 0 {
			t.Screen.SetContent(t.X+c0, t.Y+r0, glyph, nil, style)
		}
		if c0 == c1 && r0 == r1 {
			break
		}
		e2 := 2 * e
		if e2 >= dr {
			e += dr
			c0 += sc
		}
		if e2 <= dc {
			e += dc
			r0 += sr
		}
	}
}

func (t *TermSurface) Polyline(points []Vec, st Stroke) {
	for i := 1; i < len(points); i++ {
		t.Line(points[i-1], points[i], st)
	}
}

func (t *TermSurface) Text(at Vec, text string, st TextStyle) {
	col, row, ok := t.cell(at)
	if !ok {
		return
	}
	runes := []rune(text)
	if st.Align == AlignCenter {
		col -= len(runes) / 2
	}
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.GetColor(st.Color))
	for i, r := range runes {
		if c := col + i; c >= 0 && c < t.Cols {
			t.Screen.SetContent(t.X+c, t.Y+row, r, nil, style)
		}
	}
}

// lineGlyph picks the rune for a stroke by its width and direction
func lineGlyph(c0, r0, c1, r1 int, st Stroke) rune {
	switch {
	case st.Width < 2:
		return '·'
	case r0 == r1 && c0 != c1:
		return tcell.RuneHLine
	case c0 == c1 && r0 != r1:
		return tcell.RuneVLine
	default:
		return '•'
	}
}

func clampVec(v Vec, t *TermSurface) Vec {
	w, h := t.Size()
	return Vec{
		X: math.Max(0, math.Min(v.X, float64(w))),
		Y: math.Max(0, math.Min(v.Y, float64(h))),
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
