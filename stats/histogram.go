package stats

import (
	"errors"
	"image/color"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// HistogramOptions styles the mean-MNN histogram
type HistogramOptions struct {
	Bins  int
	Title string
	Fill  color.Color
}

// Histogram renders values as a PNG (or any format gonum/plot infers from
// the extension of path)
func Histogram(path string, values []float64, opts HistogramOptions) error {
	if len(values) == 0 {
		return errors.New("histogram: no values")
	}
	if opts.Bins <= 0 {
		opts.Bins = 20
	}
	if opts.Fill == nil {
		opts.Fill = colornames.Steelblue
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Mean MIDI note number"
	p.Y.Label.Text = "Files"

	h, err := plotter.NewHist(plotter.Values(values), opts.Bins)
	if err != nil {
		return err
	}
	h.FillColor = opts.Fill
	h.LineStyle.Color = colornames.Darkslategray
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
