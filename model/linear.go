package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"go-midivel/dataset"
)

// maxMIDI scales pitch, velocity and targets into [0, 1]
const maxMIDI = 127.0

// Trainer is the training collaborator: it consumes batches of flattened
// windows (one row per window) and their target velocities
type Trainer interface {
	// Step returns the batch loss before the update and updates parameters
	Step(x *mat.Dense, y *mat.VecDense) (float64, error)
	// Loss evaluates without updating
	Loss(x *mat.Dense, y *mat.VecDense) (float64, error)
	// Predict returns one velocity per row
	Predict(x *mat.Dense) (*mat.VecDense, error)
}

// LinearOptions configures a Linear model
type LinearOptions struct {
	Window       int
	LearningRate float64
	TimeScale    float64 // time deltas are divided by this before use
}

// Linear is a least-squares regressor trained by mini-batch SGD; losses
// are mean squared error in velocity units
type Linear struct {
	w   *mat.VecDense
	b   float64
	lr  float64
	div []float64 // per-column divisor
}

// NewLinear creates a zero-initialised Linear model
func NewLinear(opts LinearOptions) (*Linear, error) {
	if opts.Window <= 0 {
		return nil, fmt.Errorf("linear model: window must be positive, got %d", opts.Window)
	}
	if opts.LearningRate <= 0 {
		return nil, fmt.Errorf("linear model: learning rate must be positive, got %g", opts.LearningRate)
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 1
	}

	width := opts.Window * dataset.Features
	div := make([]float64, width)
	for j := range div {
		switch j % dataset.Features {
		case 0:
			div[j] = opts.TimeScale
		default:
			div[j] = maxMIDI
		}
	}
	return &Linear{
		w:   mat.NewVecDense(width, nil),
		b:   0.5,
		lr:  opts.LearningRate,
		div: div,
	}, nil
}

// Width returns the number of input columns the model expects
func (l *Linear) Width() int {
	return l.w.Len()
}

// forward scales x and returns it with the scaled predictions
func (l *Linear) forward(x *mat.Dense) (*mat.Dense, *mat.VecDense, error) {
	rows, cols := x.Dims()
	if cols != l.w.Len() {
		return nil, nil, fmt.Errorf("linear model: batch has %d columns, want %d", cols, l.w.Len())
	}
	xs := mat.NewDense(rows, cols, nil)
	xs.Apply(func(i, j int, v float64) float64 { return v / l.div[j] }, x)

	pred := mat.NewVecDense(rows, nil)
	pred.MulVec(xs, l.w)
	for i := 0; i < rows; i++ {
		pred.SetVec(i, pred.AtVec(i)+l.b)
	}
	return xs, pred, nil
}

// residual returns scaled prediction minus scaled target, and the MSE in velocity units
func (l *Linear) residual(pred, y *mat.VecDense) (*mat.VecDense, float64, error) {
	if pred.Len() != y.Len() {
		return nil, 0, fmt.Errorf("linear model: %d rows but %d targets", pred.Len(), y.Len())
	}
	r := mat.NewVecDense(y.Len(), nil)
	r.ScaleVec(1/maxMIDI, y)
	r.SubVec(pred, r)

	scaled := mat.Dot(r, r) / float64(r.Len())
	return r, scaled * maxMIDI * maxMIDI, nil
}

func (l *Linear) Step(x *mat.Dense, y *mat.VecDense) (float64, error) {
	xs, pred, err := l.forward(x)
	if err != nil {
		return 0, err
	}
	r, loss, err := l.residual(pred, y)
	if err != nil {
		return 0, err
	}

	n := float64(r.Len())
	grad := mat.NewVecDense(l.w.Len(), nil)
	grad.MulVec(xs.T(), r)
	l.w.AddScaledVec(l.w, -l.lr*2/n, grad)

	sum := 0.0
	for i := 0; i < r.Len(); i++ {
		sum += r.AtVec(i)
	}
	l.b -= l.lr * 2 / n * sum
	return loss, nil
}

func (l *Linear) Loss(x *mat.Dense, y *mat.VecDense) (float64, error) {
	_, pred, err := l.forward(x)
	if err != nil {
		return 0, err
	}
	_, loss, err := l.residual(pred, y)
	return loss, err
}

func (l *Linear) Predict(x *mat.Dense) (*mat.VecDense, error) {
	_, pred, err := l.forward(x)
	if err != nil {
		return nil, err
	}
	pred.ScaleVec(maxMIDI, pred)
	return pred, nil
}
