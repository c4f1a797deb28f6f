// Package chart renders spend trends as PNG bar charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart has no data")

// Config sets the output size.
type Config struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultConfig returns an 8x4 inch canvas, which fits an A4 page width.
func DefaultConfig() Config {
	return Config{Width: 8 * vg.Inch, Height: 4 * vg.Inch}
}

// Renderer draws bar charts.
type Renderer struct {
	cfg Config
}

// New returns a renderer. Zero dimensions fall back to DefaultConfig.
func New(cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	return &Renderer{cfg: cfg}
}

// barColor matches the table header fill of PDF exports.
var barColor = color.RGBA{R: 6, G: 182, B: 212, A: 255}

// Render draws one bar per bucket in the given order and returns PNG bytes.
func (r *Renderer) Render(title string, buckets []api.Bucket) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, ErrNoData
	}

	values := make(plotter.Values, len(buckets))
	names := make([]string, len(buckets))
	for i, b := range buckets {
		values[i] = b.Value.InexactFloat64()
		names[i] = b.Name
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Amount"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, barWidth(r.cfg.Width, len(buckets)))
	if err != nil {
		return nil, fmt.Errorf("building bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalX(names...)

	wt, err := p.WriterTo(r.cfg.Width, r.cfg.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("creating png canvas: %w", err)
	}

	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func barWidth(total vg.Length, n int) vg.Length {
	w := total / vg.Length(n*2)
	if w > vg.Centimeter {
		w = vg.Centimeter
	}
	return w
}
