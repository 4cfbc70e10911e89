package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"go-midivel/config"
	"go-midivel/debug"
	"go-midivel/split"
	"go-midivel/stats"
	"go-midivel/token"
)

// MeanMNN runs the mean MIDI note number statistics over a profile
type MeanMNN struct {
	Histogram config.HistogramConfig
	Fill      color.Color // histogram bars; nil for the default
	Logger    *log.Logger

	OnStage func(name string, total int)
	OnFile  func(token.FileProgress)

	Read stats.ReadFunc
}

// MNNReport is the outcome of MeanMNN.Run
type MNNReport struct {
	Stats     *stats.Summary
	TextPath  string
	ImagePath string // empty when no file had notes
}

// Summary renders the outcome for the console
func (r *MNNReport) Summary() string {
	o := r.Stats.Overall()
	var b strings.Builder
	fmt.Fprintf(&b, "Files: %d, Skipped: %d\n", o.Files, len(r.Stats.Skipped))
	if o.Files > 0 {
		fmt.Fprintf(&b, "Mean MNN: %.3f (sd %.3f, min %.3f, max %.3f)\n", o.Mean, o.StdDev, o.Min, o.Max)
	}
	fmt.Fprintf(&b, "Means written to %s", r.TextPath)
	if r.ImagePath != "" {
		fmt.Fprintf(&b, "\nHistogram written to %s", r.ImagePath)
	}
	return b.String()
}

// Run scans the profile's input directory and writes one mean per
// kept file plus a histogram into its output directory
func (m *MeanMNN) Run(ctx context.Context, p config.Profile) (*MNNReport, error) {
	l := m.Logger
	if l == nil {
		l = debug.For("mnn")
	}

	files, err := split.ListMIDIFiles(p.InputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return nil, err
	}

	if m.OnStage != nil {
		m.OnStage(StageStats, len(files))
	}
	c := stats.NewCollector(m.Read, l)
	if m.OnFile != nil {
		i := 0
		c.OnFile = func(st stats.FileStat, err error) {
			m.OnFile(token.FileProgress{Index: i, Total: len(files), Path: st.Path, Tokens: st.Notes, Err: err})
			i++
		}
	}
	sum, err := c.Collect(ctx, files)
	if err != nil {
		return nil, err
	}

	r := &MNNReport{Stats: sum, TextPath: p.OutputPath(p.OutputFileName)}
	if err := stats.WriteMeans(r.TextPath, sum.Stats); err != nil {
		return nil, fmt.Errorf("write means: %w", err)
	}
	l.Info("wrote means", "path", r.TextPath, "files", len(sum.Stats), "skipped", len(sum.Skipped))

	if len(sum.Stats) == 0 {
		l.Warn("no file had notes, skipping histogram")
		return r, nil
	}
	image := m.Histogram.ImageName
	if image == "" {
		image = "mean_mnn.png"
	}
	r.ImagePath = p.OutputPath(image)
	err = stats.Histogram(r.ImagePath, sum.Means(), stats.HistogramOptions{
		Bins:  m.Histogram.Bins,
		Title: m.Histogram.Title,
		Fill:  m.Fill,
	})
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	l.Info("wrote histogram", "path", r.ImagePath)
	return r, nil
}
