package model_test

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"go-midivel/dataset"
	"go-midivel/debug"
	"go-midivel/model"
	"go-midivel/token"
)

// runs of equal velocity, so the next velocity is usually the last one seen
func runs(n int) []token.Token {
	seq := make([]token.Token, n)
	for i := range seq {
		seq[i] = token.Token{TimeDelta: 0.25, Pitch: uint8(60 + i%12), Velocity: uint8(20 + 25*((i/20)%4))}
	}
	return seq
}

func build(t *testing.T, n, window int) *dataset.Dataset {
	t.Helper()
	d, err := dataset.Build(runs(n), window)
	require.NoError(t, err)
	return d
}

func TestFitReducesLoss(t *testing.T) {
	train := build(t, 400, 4)
	val := build(t, 120, 4)

	m, err := model.NewLinear(model.LinearOptions{Window: 4, LearningRate: 0.1})
	require.NoError(t, err)

	var bar bytes.Buffer
	history, err := model.Fit(context.Background(), m, train, val, model.FitOptions{
		Epochs:    15,
		BatchSize: 16,
		Seed:      1,
		Progress:  &bar,
		Logger:    log.New(io.Discard),
	})
	require.NoError(t, err)
	require.Len(t, history, 15)
	assert.Less(t, history[14].Train, history[0].Train)
	assert.Less(t, history[14].Validation, history[0].Validation)
	assert.NotEmpty(t, bar.String())

	x := val.Flat(0)
	v, err := model.PredictOne(m, x)
	require.NoError(t, err)
	// closer than the untrained constant prediction of 63.5
	assert.Less(t, math.Abs(v-val.Targets[0]), math.Abs(63.5-val.Targets[0]))
}

func TestFitIsReproducible(t *testing.T) {
	train := build(t, 100, 3)
	opts := model.FitOptions{Epochs: 3, BatchSize: 8, Seed: 9, Logger: log.New(io.Discard)}

	a, _ := model.NewLinear(model.LinearOptions{Window: 3, LearningRate: 0.05})
	b, _ := model.NewLinear(model.LinearOptions{Window: 3, LearningRate: 0.05})
	ha, err := model.Fit(context.Background(), a, train, nil, opts)
	require.NoError(t, err)
	hb, err := model.Fit(context.Background(), b, train, nil, opts)
	require.NoError(t, err)

	for i := range ha {
		assert.Equal(t, ha[i].Train, hb[i].Train)
		assert.True(t, math.IsNaN(ha[i].Validation))
	}
}

func TestFitWithoutTrainingData(t *testing.T) {
	m, err := model.NewLinear(model.LinearOptions{Window: 5, LearningRate: 0.1})
	require.NoError(t, err)
	empty, err := dataset.Build(runs(5), 5)
	require.NoError(t, err)

	_, err = model.Fit(context.Background(), m, empty, nil, model.FitOptions{Epochs: 1})
	assert.ErrorIs(t, err, model.ErrNoTrainingData)
}

func TestLinearRejectsWrongWidth(t *testing.T) {
	m, err := model.NewLinear(model.LinearOptions{Window: 2, LearningRate: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 6, m.Width())

	x := mat.NewDense(1, 9, nil)
	y := mat.NewVecDense(1, []float64{64})
	_, err = m.Step(x, y)
	assert.Error(t, err)
	_, err = m.Predict(x)
	assert.Error(t, err)
}

func TestLinearLossIsInVelocityUnits(t *testing.T) {
	m, err := model.NewLinear(model.LinearOptions{Window: 1, LearningRate: 0.1})
	require.NoError(t, err)

	// untrained: weights 0, bias 0.5 predicts 63.5 for every row
	x := mat.NewDense(2, 3, []float64{0, 60, 80, 0, 62, 90})
	pred, err := m.Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, 63.5, pred.AtVec(0), 1e-9)

	loss, err := m.Loss(x, mat.NewVecDense(2, []float64{73.5, 53.5}))
	require.NoError(t, err)
	assert.InDelta(t, 100, loss, 1e-9)
}

func TestNewLinearValidates(t *testing.T) {
	_, err := model.NewLinear(model.LinearOptions{Window: 0, LearningRate: 0.1})
	assert.Error(t, err)
	_, err = model.NewLinear(model.LinearOptions{Window: 3})
	assert.Error(t, err)
}

func TestFitSamplesBatchLossesInDebugLog(t *testing.T) {
	debug.SetOutput(io.Discard)
	defer debug.SetOutput(nil)
	path := filepath.Join(t.TempDir(), "debug.log")
	require.NoError(t, debug.Enable(path))

	m, err := model.NewLinear(model.LinearOptions{Window: 2, LearningRate: 0.05})
	require.NoError(t, err)
	// 100 windows in batches of 1: 100 batches over one epoch
	_, err = model.Fit(context.Background(), m, build(t, 102, 2), nil, model.FitOptions{
		Epochs:    1,
		BatchSize: 1,
		Logger:    log.New(io.Discard),
	})
	debug.Disable()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Count(string(data), "batch")
	assert.GreaterOrEqual(t, lines, 2)
	assert.Less(t, lines, 10, "batches are sampled, not logged one by one")
	assert.Contains(t, string(data), "loss=")
}
