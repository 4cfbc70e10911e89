package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-midivel/config"
	"go-midivel/dataset"
	"go-midivel/midi/miditest"
	"go-midivel/pipeline"
	"go-midivel/split"
	"go-midivel/token"
)

var quiet = log.New(io.Discard)

func velocity(window int, boundary string) *pipeline.Velocity {
	cfg := config.DefaultConfig()
	cfg.Dataset.Window = window
	cfg.Dataset.Boundary = boundary
	cfg.Training.Epochs = 2
	cfg.Training.LearningRate = 0.05
	return &pipeline.Velocity{Dataset: cfg.Dataset, Training: cfg.Training, Logger: quiet}
}

// corpus writes n files of 2*notes tokens each
func corpus(t *testing.T, n, notes int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		miditest.Write(t, dir, fmt.Sprintf("%02d.mid", i), miditest.Notes(notes))
	}
	return dir
}

func TestSplitConcatenatesFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		miditest.Write(t, dir, "a.mid", miditest.Notes(5)),
		miditest.Write(t, dir, "b.mid", miditest.Notes(10)),
		miditest.Write(t, dir, "c.mid", miditest.Notes(15)),
	}

	sr, err := velocity(5, config.BoundaryNone).Split(context.Background(), "train", files)
	require.NoError(t, err)
	require.Len(t, sr.Tokens, 60)
	assert.Equal(t, 55, sr.Data.Len())
	assert.Equal(t, [3]int{55, 5, 3}, sr.Data.Shape())
	// on/off pairs: token 5 is the note-off of a.mid's third note
	assert.Equal(t, float64(sr.Tokens[5].Velocity), sr.Data.Targets[0])
	assert.Equal(t, 0.0, sr.Data.Targets[0])
	assert.Equal(t, float64(sr.Tokens[6].Velocity), sr.Data.Targets[1])
	assert.Equal(t, 22.0, sr.Data.Targets[1])
	assert.Equal(t, float64(sr.Tokens[59].Velocity), sr.Data.Targets[54])
}

func TestSplitSentinelKeepsWindowsInsideFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.mid", "b.mid", "c.mid"} {
		files = append(files, miditest.Write(t, dir, name, miditest.Notes(5)))
	}

	sr, err := velocity(5, config.BoundarySentinel).Split(context.Background(), "train", files)
	require.NoError(t, err)
	assert.Len(t, sr.Tokens, 32)
	assert.True(t, sr.Tokens[10].IsSentinel())
	assert.Equal(t, 15, sr.Data.Len())
}

func TestSplitSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		miditest.Write(t, dir, "a.mid", miditest.Notes(5)),
		miditest.WriteCorrupt(t, dir, "b.mid"),
	}

	var seen []token.FileProgress
	v := velocity(5, config.BoundaryNone)
	v.OnFile = func(p token.FileProgress) { seen = append(seen, p) }

	sr, err := v.Split(context.Background(), "test", files)
	require.NoError(t, err)
	assert.Len(t, sr.Tokens, 10)
	require.Len(t, sr.Skipped, 1)
	assert.Equal(t, files[1], sr.Skipped[0].Path)
	require.Len(t, seen, 2)
	assert.Error(t, seen[1].Err)
}

func TestVelocityRun(t *testing.T) {
	dir := corpus(t, 10, 5)

	var stages []string
	var bar bytes.Buffer
	v := velocity(3, config.BoundaryNone)
	v.Fit = true
	v.Progress = &bar
	v.OnStage = func(name string, _ int) { stages = append(stages, name) }

	r, err := v.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{pipeline.StageTrain, pipeline.StageValidation, pipeline.StageTest, pipeline.StageFit}, stages)
	assert.Len(t, r.Train.Files, 7)
	assert.Len(t, r.Validation.Files, 1)
	assert.Len(t, r.Test.Files, 2)
	assert.Len(t, r.Train.Tokens, 70)
	assert.Equal(t, 67, r.Train.Data.Len())
	assert.Equal(t, 7, r.Validation.Data.Len())
	assert.Equal(t, 17, r.Test.Data.Len())

	assert.Len(t, r.History, 2)
	require.NotNil(t, r.Example)
	assert.Equal(t, r.Test.Data.Targets[0], r.Example.Actual)

	summary := r.Summary()
	assert.Contains(t, summary, "Training tokens: 70, Validation tokens: 10, Test tokens: 20")
	assert.Contains(t, summary, "Training sequences: (67, 3, 3)")
	assert.Contains(t, summary, "Predicted Velocity:")
}

func TestVelocityRunIsReproducible(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		miditest.Write(t, dir, fmt.Sprintf("%02d.mid", i), miditest.Notes(5+i))
	}

	a, err := velocity(2, config.BoundarySentinel).Run(context.Background(), dir)
	require.NoError(t, err)
	b, err := velocity(2, config.BoundarySentinel).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, a.Test.Files, b.Test.Files)
	assert.Equal(t, a.Train.Data.Targets, b.Train.Data.Targets)
	assert.Nil(t, a.Example)
}

func TestVelocityRunErrors(t *testing.T) {
	ctx := context.Background()

	_, err := velocity(5, config.BoundaryNone).Run(ctx, t.TempDir())
	var empty *split.EmptyInputError
	assert.ErrorAs(t, err, &empty)

	dir := corpus(t, 10, 10)
	_, err = velocity(100, config.BoundaryNone).Run(ctx, dir)
	var win *dataset.InvalidWindowError
	require.ErrorAs(t, err, &win)
	assert.Equal(t, 100, win.Window)

	_, err = velocity(0, config.BoundaryNone).Run(ctx, dir)
	assert.ErrorAs(t, err, &win)

	_, err = velocity(5, "wall").Run(ctx, dir)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "dataset.boundary", cfgErr.Field)

	v := velocity(5, config.BoundaryNone)
	v.Dataset.TestFraction = 1.5
	_, err = v.Run(ctx, dir)
	assert.ErrorAs(t, err, &cfgErr)
}

func TestMeanMNNRun(t *testing.T) {
	in := t.TempDir()
	for i := 0; i < 9; i++ {
		miditest.Write(t, in, fmt.Sprintf("%02d.mid", i), miditest.Notes(10))
	}
	miditest.WriteCorrupt(t, in, "99.mid")
	profile := config.Profile{InputDir: in, OutputDir: filepath.Join(t.TempDir(), "out"), OutputFileName: "mean_mnn.txt"}

	files := 0
	m := &pipeline.MeanMNN{
		Histogram: config.DefaultConfig().Histogram,
		Logger:    quiet,
		OnFile:    func(token.FileProgress) { files++ },
	}
	r, err := m.Run(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, 10, files)
	assert.Len(t, r.Stats.Stats, 9)
	require.Len(t, r.Stats.Skipped, 1)
	assert.Equal(t, filepath.Join(in, "99.mid"), r.Stats.Skipped[0].Path)

	text, err := os.ReadFile(r.TextPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(text)), "\n")
	assert.Len(t, lines, 9)
	assert.Equal(t, "44.5", lines[0])

	info, err := os.Stat(r.ImagePath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Contains(t, r.Summary(), "Files: 9, Skipped: 1")
}

func TestMeanMNNRunWithoutNotes(t *testing.T) {
	in := t.TempDir()
	miditest.WriteCorrupt(t, in, "a.mid")
	profile := config.Profile{InputDir: in, OutputDir: t.TempDir(), OutputFileName: "m.txt"}

	r, err := (&pipeline.MeanMNN{Logger: quiet}).Run(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, r.ImagePath)
	assert.Empty(t, r.Stats.Stats)
	assert.FileExists(t, r.TextPath)
}

func TestMeanMNNRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	profile := config.Profile{InputDir: corpus(t, 2, 3), OutputDir: t.TempDir(), OutputFileName: "m.txt"}
	_, err := (&pipeline.MeanMNN{Logger: quiet}).Run(ctx, profile)
	assert.True(t, errors.Is(err, context.Canceled))
}
