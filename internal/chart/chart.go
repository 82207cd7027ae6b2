// Package chart renders the analysis helpers as PNG images.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/mohammed-shakir/urbansphere/internal/analysis"
	"github.com/mohammed-shakir/urbansphere/internal/render"
)

var ErrNoData = errors.New("nothing to chart")

var (
	barColor  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

const (
	width  = 8 * vg.Inch
	height = 5 * vg.Inch
)

// Bar draws the top-N ranking as blue bars labelled by region.
func Bar(w io.Writer, title, yLabel string, rows []analysis.RegionValue) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.Text = yLabel

	values := make(plotter.Values, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		values[i] = r.Value
		labels[i] = r.Region
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Color = barColor
	bars.LineStyle.Width = vg.Points(1.5)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Y.Min = math.Min(0, p.Y.Min)

	return save(p, w)
}

// Line draws a region's values over its periods. Periods are placed at
// equal spacing since they need not be numeric.
func Line(w io.Writer, title, yLabel string, series []analysis.PeriodValue) error {
	if len(series) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Period"
	p.Y.Label.Text = yLabel

	points := make(plotter.XYs, len(series))
	labels := make([]string, len(series))
	for i, s := range series {
		points[i].X = float64(i)
		points[i].Y = s.Value
		labels[i] = s.Period
	}

	line, marks, err := plotter.NewLinePoints(points)
	if err != nil {
		return fmt.Errorf("line chart: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(2)
	marks.GlyphStyle.Color = lineColor

	p.Add(line, marks)
	p.Add(plotter.NewGrid())
	p.NominalX(labels...)

	return save(p, w)
}

// Legend draws one swatch per class, labelled with its value range.
func Legend(w io.Writer, title string, entries []render.LegendEntry) error {
	if len(entries) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.HideY()

	labels := make([]string, len(entries))
	for i, e := range entries {
		sw, err := plotter.NewBarChart(plotter.Values{1}, vg.Points(40))
		if err != nil {
			return fmt.Errorf("legend swatch: %w", err)
		}
		sw.XMin = float64(i)
		sw.Color = color.RGBA{R: e.Color[0], G: e.Color[1], B: e.Color[2], A: 255}
		sw.LineStyle.Width = vg.Points(0.5)
		p.Add(sw)
		labels[i] = e.Label
	}
	p.NominalX(labels...)

	return save(p, w)
}

func save(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
