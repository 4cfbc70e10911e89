package model

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/mat"
	pb "gopkg.in/cheggaaa/pb.v1"

	"go-midivel/dataset"
	"go-midivel/debug"
)

// FitOptions configures the training loop
type FitOptions struct {
	Epochs    int
	BatchSize int
	Seed      uint64    // batch shuffling
	Progress  io.Writer // progress bar destination; nil for none
	Logger    *log.Logger
}

// EpochLoss is the mean batch loss of one epoch
type EpochLoss struct {
	Epoch      int
	Train      float64
	Validation float64 // NaN without validation windows
}

// ErrNoTrainingData is returned when the training set has no windows
var ErrNoTrainingData = errors.New("no training windows")

// Fit trains tr for opts.Epochs epochs of shuffled mini-batches and
// evaluates on val after every epoch
func Fit(ctx context.Context, tr Trainer, train, val *dataset.Dataset, opts FitOptions) ([]EpochLoss, error) {
	if train == nil || train.Len() == 0 {
		return nil, ErrNoTrainingData
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	l := opts.Logger
	if l == nil {
		l = debug.For("train")
	}

	batches := (train.Len() + opts.BatchSize - 1) / opts.BatchSize
	var bar *pb.ProgressBar
	if opts.Progress != nil {
		bar = pb.New(opts.Epochs * batches)
		bar.Output = opts.Progress
		bar.Start()
		defer bar.Finish()
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed+1))
	history := make([]EpochLoss, 0, opts.Epochs)
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		perm := rng.Perm(train.Len())
		total := 0.0
		for start := 0; start < len(perm); start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			x, y := train.Batch(perm[start:min(start+opts.BatchSize, len(perm))])
			loss, err := tr.Step(x, y)
			if err != nil {
				return history, err
			}
			total += loss
			debug.LogEvery(50, "train", "batch", "epoch", epoch, "loss", loss)
			if bar != nil {
				bar.Increment()
			}
		}

		valLoss, err := Evaluate(tr, val, opts.BatchSize)
		if err != nil {
			return history, err
		}
		e := EpochLoss{Epoch: epoch, Train: total / float64(batches), Validation: valLoss}
		history = append(history, e)
		l.Info("epoch", "n", epoch, "of", opts.Epochs, "train_loss", e.Train, "val_loss", e.Validation)
	}
	return history, nil
}

// Evaluate returns the mean batch loss over d, NaN when d is empty
func Evaluate(tr Trainer, d *dataset.Dataset, batchSize int) (float64, error) {
	if d == nil || d.Len() == 0 {
		return math.NaN(), nil
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}

	total, n := 0.0, 0
	for start := 0; start < len(idx); start += batchSize {
		x, y := d.Batch(idx[start:min(start+batchSize, len(idx))])
		loss, err := tr.Loss(x, y)
		if err != nil {
			return 0, err
		}
		total += loss
		n++
	}
	return total / float64(n), nil
}

// PredictOne returns the predicted velocity for a single flattened window
func PredictOne(tr Trainer, window *mat.Dense) (float64, error) {
	pred, err := tr.Predict(window)
	if err != nil {
		return 0, err
	}
	return pred.AtVec(0), nil
}
