package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go-midivel/debug"
	"go-midivel/midi"
)

// ErrNoNotes is returned for files that contain no sounding notes
var ErrNoNotes = errors.New("file has no notes")

// FileStat is the mean MIDI note number of one file
type FileStat struct {
	Path    string
	Notes   int
	MeanMNN float64
}

// MeanMNN averages the pitches of every paired note in f, drums included.
// Note-ons that are never ended do not count.
func MeanMNN(f *midi.File) (FileStat, error) {
	notes := f.Notes()
	if len(notes) == 0 {
		return FileStat{Path: f.Path}, ErrNoNotes
	}
	pitches := make([]float64, len(notes))
	for i, n := range notes {
		pitches[i] = float64(n.Pitch)
	}
	return FileStat{Path: f.Path, Notes: len(notes), MeanMNN: stat.Mean(pitches, nil)}, nil
}

// Skip records a file left out of the statistics
type Skip struct {
	Path string
	Err  error
}

// Summary is the outcome of a batch run
type Summary struct {
	Stats   []FileStat
	Skipped []Skip
}

// Means returns the per-file means in processing order
func (s *Summary) Means() []float64 {
	means := make([]float64, len(s.Stats))
	for i, st := range s.Stats {
		means[i] = st.MeanMNN
	}
	return means
}

// Overall describes the distribution of per-file means
type Overall struct {
	Files  int
	Mean   float64
	StdDev float64 // NaN for a single file
	Min    float64
	Max    float64
}

// Overall summarises Means; zero when no file was kept
func (s *Summary) Overall() Overall {
	means := s.Means()
	if len(means) == 0 {
		return Overall{}
	}
	return Overall{
		Files:  len(means),
		Mean:   stat.Mean(means, nil),
		StdDev: stat.StdDev(means, nil),
		Min:    floats.Min(means),
		Max:    floats.Max(means),
	}
}

// ReadFunc loads one MIDI file
type ReadFunc func(path string) (*midi.File, error)

// Collector computes mean MNN over many files
type Collector struct {
	read ReadFunc
	log  *log.Logger

	// OnFile, when set, is called after every file; err is non-nil for skips
	OnFile func(st FileStat, err error)
}

// NewCollector creates a Collector; nil read uses midi.ReadFile in ticks
func NewCollector(read ReadFunc, l *log.Logger) *Collector {
	if read == nil {
		read = func(path string) (*midi.File, error) {
			return midi.ReadFile(path, midi.Ticks)
		}
	}
	if l == nil {
		l = debug.For("mnn")
	}
	return &Collector{read: read, log: l}
}

// Collect processes paths in order. Unreadable files and files without
// notes are logged and skipped; other errors abort.
func (c *Collector) Collect(ctx context.Context, paths []string) (*Summary, error) {
	sum := &Summary{}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.log.Info(fmt.Sprintf("scanning file %d/%d", i+1, len(paths)), "file", path)

		st, err := c.one(path)
		if c.OnFile != nil && (err == nil || skippable(err)) {
			st.Path = path
			c.OnFile(st, err)
		}
		switch {
		case err == nil:
			sum.Stats = append(sum.Stats, st)
		case skippable(err):
			c.log.Warn("skipping file", "file", path, "err", err)
			sum.Skipped = append(sum.Skipped, Skip{Path: path, Err: err})
		default:
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return sum, nil
}

func skippable(err error) bool {
	var rerr *midi.FileReadError
	return errors.As(err, &rerr) || errors.Is(err, ErrNoNotes)
}

func (c *Collector) one(path string) (FileStat, error) {
	f, err := c.read(path)
	if err != nil {
		return FileStat{}, err
	}
	for i, inst := range f.Instruments() {
		c.log.Debug("instrument", "index", i, "program", inst.Program, "drum", inst.IsDrum, "notes", inst.Notes)
	}
	st, err := MeanMNN(f)
	if err != nil {
		return st, err
	}
	c.log.Debug("mean mnn", "file", path, "notes", st.Notes, "mean", st.MeanMNN)
	return st, nil
}

// WriteMeans writes one mean per line in processing order
func WriteMeans(path string, stats []FileStat) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, st := range stats {
		w.WriteString(strconv.FormatFloat(st.MeanMNN, 'f', -1, 64))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
