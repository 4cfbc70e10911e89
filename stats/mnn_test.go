package stats_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-midivel/midi"
	"go-midivel/midi/miditest"
	"go-midivel/stats"
)

func chord(keys ...uint8) []miditest.Msg {
	var msgs []miditest.Msg
	for _, k := range keys {
		msgs = append(msgs, miditest.On(0, 0, k, 100))
	}
	for i, k := range keys {
		delta := uint32(0)
		if i == 0 {
			delta = 480
		}
		msgs = append(msgs, miditest.Off(delta, 0, k))
	}
	return msgs
}

func TestMeanMNNCountsAllInstruments(t *testing.T) {
	path := miditest.Write(t, t.TempDir(), "f.mid",
		chord(60, 64, 67),
		[]miditest.Msg{miditest.On(0, 9, 36, 120), miditest.ZeroOn(10, 9, 36)},
	)
	f, err := midi.ReadFile(path, midi.Ticks)
	require.NoError(t, err)

	st, err := stats.MeanMNN(f)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Notes)
	assert.InDelta(t, (60.0+64+67+36)/4, st.MeanMNN, 1e-9)
}

func TestMeanMNNNoNotes(t *testing.T) {
	path := miditest.Write(t, t.TempDir(), "empty.mid", []miditest.Msg{miditest.CC(0, 0, 7, 90)})
	f, err := midi.ReadFile(path, midi.Ticks)
	require.NoError(t, err)

	_, err = stats.MeanMNN(f)
	assert.ErrorIs(t, err, stats.ErrNoNotes)
}

func TestCollectSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 9; i++ {
		key := uint8(50 + i)
		paths = append(paths, miditest.Write(t, dir, fmt.Sprintf("%d.mid", i), chord(key, key+2)))
		if i == 4 {
			paths = append(paths, miditest.WriteCorrupt(t, dir, "corrupt.mid"))
		}
	}

	var logs bytes.Buffer
	c := stats.NewCollector(nil, log.New(&logs))
	sum, err := c.Collect(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, sum.Stats, 9)
	require.Len(t, sum.Skipped, 1)
	assert.Equal(t, filepath.Join(dir, "corrupt.mid"), sum.Skipped[0].Path)
	assert.Contains(t, logs.String(), "skipping file")
	assert.Contains(t, logs.String(), "corrupt.mid")

	for i, st := range sum.Stats {
		assert.InDelta(t, float64(51+i), st.MeanMNN, 1e-9, "processing order is kept")
	}

	o := sum.Overall()
	assert.Equal(t, 9, o.Files)
	assert.InDelta(t, 55, o.Mean, 1e-9)
	assert.Equal(t, 51.0, o.Min)
	assert.Equal(t, 59.0, o.Max)
}

func TestCollectAbortsOnUnexpectedError(t *testing.T) {
	boom := errors.New("boom")
	c := stats.NewCollector(func(string) (*midi.File, error) { return nil, boom }, log.New(io.Discard))
	_, err := c.Collect(context.Background(), []string{"a.mid"})
	assert.ErrorIs(t, err, boom)
}

func TestOverallSingleAndEmpty(t *testing.T) {
	assert.Equal(t, stats.Overall{}, (&stats.Summary{}).Overall())

	one := (&stats.Summary{Stats: []stats.FileStat{{MeanMNN: 60}}}).Overall()
	assert.Equal(t, 60.0, one.Mean)
	assert.True(t, math.IsNaN(one.StdDev))
}

func TestWriteMeansOnePerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "means.txt")
	err := stats.WriteMeans(path, []stats.FileStat{{MeanMNN: 64.5}, {MeanMNN: 60}, {MeanMNN: 61.25}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"64.5", "60", "61.25"}, strings.Fields(string(data)))
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestHistogramWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist.png")
	values := []float64{55, 57.5, 60, 60.25, 62, 64, 70}
	require.NoError(t, stats.Histogram(path, values, stats.HistogramOptions{Bins: 20, Title: "Mean MNN"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	assert.Error(t, stats.Histogram(path, nil, stats.HistogramOptions{}))
}

func TestMeanMNNIgnoresUnendedNotes(t *testing.T) {
	path := miditest.Write(t, t.TempDir(), "held.mid", []miditest.Msg{
		miditest.On(0, 0, 50, 100),
		miditest.Off(480, 0, 50),
		miditest.On(0, 0, 90, 100), // held to the end of the track
	})
	f, err := midi.ReadFile(path, midi.Ticks)
	require.NoError(t, err)

	st, err := stats.MeanMNN(f)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Notes)
	assert.Equal(t, 50.0, st.MeanMNN)
}
