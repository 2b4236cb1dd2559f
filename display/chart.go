package metricgen

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Image formats a ChartSurface can write
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

var providers = map[string]chart.RendererProvider{
	FormatPNG: chart.PNG,
	FormatSVG: chart.SVG,
}

// ChartSurface draws through a go-chart renderer and saves as PNG or SVG
type ChartSurface struct {
	Format string
	width  int
	height int
	r      chart.Renderer
}

func NewChartSurface(format string, width, height int) (*ChartSurface, error) {
	provider, ok := providers[format]
	if !ok {
		return nil, fmt.Errorf("unknown image format: %s", format)
	}

	r, err := provider(width, height)
	if err != nil {
		return nil, fmt.Errorf("could not create %s renderer: %w", format, err)
	}

	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("could not load font: %w", err)
	}
	r.SetFont(font)

	return &ChartSurface{
		Format: format,
		width:  width,
		height: height,
		r:      r,
	}, nil
}

func (c *ChartSurface) Size() (int, int) {
	return c.width, c.height
}

// Clear paints the whole surface white
func (c *ChartSurface) Clear() {
	c.r.ResetStyle()
	c.r.SetFillColor(drawing.ColorWhite)
	c.r.MoveTo(0, 0)
	c.r.LineTo(c.width, 0)
	c.r.LineTo(c.width, c.height)
	c.r.LineTo(0, c.height)
	c.r.Close()
	c.r.Fill()
}

func (c *ChartSurface) Line(from, to Vec, st Stroke) {
	c.Polyline([]Vec{from, to}, st)
}

func (c *ChartSurface) Polyline(points []Vec, st Stroke) {
	if len(points) < 2 {
		return
	}
	c.r.ResetStyle()
	c.r.SetStrokeColor(hexColor(st.Color))
	c.r.SetStrokeWidth(st.Width)
	c.r.SetStrokeDashArray(st.Dash)

	c.r.MoveTo(px(points[0].X), px(points[0].Y))
	for _, pt := range points[1:] {
		c.r.LineTo(px(pt.X), px(pt.Y))
	}
	c.r.Stroke()
}

func (c *ChartSurface) Text(at Vec, text string, st TextStyle) {
	c.r.ResetStyle()
	c.r.SetFontColor(hexColor(st.Color))
	c.r.SetFontSize(st.Size)

	x := px(at.X)
	if st.Align == AlignCenter {
		x -= c.r.MeasureText(text).Width() / 2
	}
	c.r.Text(text, x, px(at.Y))
}

// Save writes the image in the surface format
func (c *ChartSurface) Save(w io.Writer) error {
	return c.r.Save(w)
}

// ContentType is the HTTP content type of the saved image
func (c *ChartSurface) ContentType() string {
	if c.Format == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func hexColor(c string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(c, "#"))
}

func px(v float64) int {
	return int(math.Round(v))
}
