package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"go-midivel/token"
)

// Features per token: time delta, pitch, velocity
const Features = 3

// InvalidWindowError is returned when the window cannot fit the sequence
type InvalidWindowError struct {
	Window int
	Length int
}

func (e *InvalidWindowError) Error() string {
	if e.Window <= 0 {
		return fmt.Sprintf("invalid window length %d: must be positive", e.Window)
	}
	return fmt.Sprintf("invalid window length %d for a sequence of %d tokens", e.Window, e.Length)
}

// Dataset holds sliding windows and their next-token velocity targets
type Dataset struct {
	Window  int
	Inputs  []*mat.Dense // each Window x Features
	Targets []float64
	Starts  []int // sequence index of each window's first token
}

// Build slides a window of the given length over seq one token at a time.
// The target of the window starting at i is the velocity of seq[i+window].
// window == len(seq) yields an empty Dataset; window > len(seq) is an error.
// Windows whose span, target included, touches a sentinel are left out.
func Build(seq []token.Token, window int) (*Dataset, error) {
	if window <= 0 || window > len(seq) {
		return nil, &InvalidWindowError{Window: window, Length: len(seq)}
	}

	n := len(seq) - window
	d := &Dataset{
		Window:  window,
		Inputs:  make([]*mat.Dense, 0, n),
		Targets: make([]float64, 0, n),
		Starts:  make([]int, 0, n),
	}

	// next sentinel at or after each index, so spans are checked in O(1)
	next := make([]int, len(seq)+1)
	next[len(seq)] = len(seq)
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i].IsSentinel() {
			next[i] = i
		} else {
			next[i] = next[i+1]
		}
	}

	for start := 0; start < n; start++ {
		target := start + window
		if next[start] <= target {
			continue
		}
		data := make([]float64, 0, window*Features)
		for _, tok := range seq[start:target] {
			f := tok.Features()
			data = append(data, f[:]...)
		}
		d.Inputs = append(d.Inputs, mat.NewDense(window, Features, data))
		d.Targets = append(d.Targets, float64(seq[target].Velocity))
		d.Starts = append(d.Starts, start)
	}
	return d, nil
}

// Len returns the number of windows
func (d *Dataset) Len() int {
	return len(d.Targets)
}

// Shape returns (windows, window length, features)
func (d *Dataset) Shape() [3]int {
	return [3]int{d.Len(), d.Window, Features}
}

// ShapeString formats Shape like an array shape
func (d *Dataset) ShapeString() string {
	s := d.Shape()
	return fmt.Sprintf("(%d, %d, %d)", s[0], s[1], s[2])
}

// Batch flattens the windows at indices into rows of Window*Features
// values and returns them with their targets. An empty index list
// returns nil matrices.
func (d *Dataset) Batch(indices []int) (*mat.Dense, *mat.VecDense) {
	if len(indices) == 0 {
		return nil, nil
	}
	width := d.Window * Features
	x := mat.NewDense(len(indices), width, nil)
	y := mat.NewVecDense(len(indices), nil)
	for row, i := range indices {
		x.SetRow(row, d.Inputs[i].RawMatrix().Data)
		y.SetVec(row, d.Targets[i])
	}
	return x, y
}

// Flat returns window i as a single row
func (d *Dataset) Flat(i int) *mat.Dense {
	x, _ := d.Batch([]int{i})
	return x
}
