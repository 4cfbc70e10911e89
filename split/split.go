package split

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"go-midivel/config"
	"go-midivel/debug"
)

// EmptyInputError is returned when there are no files to split
type EmptyInputError struct {
	Dir string
}

func (e *EmptyInputError) Error() string {
	if e.Dir == "" {
		return "no MIDI files to split"
	}
	return fmt.Sprintf("no .mid files in %s", e.Dir)
}

// Options configures a split
type Options struct {
	TestFraction       float64
	ValidationFraction float64 // of what is left after the test files
	Seed               uint64
}

// DefaultOptions returns the 0.2 / 0.1 split with seed 42
func DefaultOptions() Options {
	return Options{TestFraction: 0.2, ValidationFraction: 0.1, Seed: 42}
}

// Result holds three disjoint file groups
type Result struct {
	Train      []string
	Validation []string
	Test       []string
}

// Sizes returns the group sizes in train, validation, test order
func (r *Result) Sizes() (train, validation, test int) {
	return len(r.Train), len(r.Validation), len(r.Test)
}

// ListMIDIFiles returns the .mid files directly inside dir, sorted by name
func ListMIDIFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mid" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	if len(files) == 0 {
		return nil, &EmptyInputError{Dir: dir}
	}
	return files, nil
}

// Sizes computes group sizes for n files, rounding test and validation up
func Sizes(n int, opts Options) (train, validation, test int, err error) {
	if n == 0 {
		return 0, 0, 0, &EmptyInputError{}
	}
	if err := config.CheckFraction("testFraction", opts.TestFraction); err != nil {
		return 0, 0, 0, err
	}
	if err := config.CheckFraction("validationFraction", opts.ValidationFraction); err != nil {
		return 0, 0, 0, err
	}

	test = int(math.Ceil(opts.TestFraction * float64(n)))
	rest := n - test
	validation = int(math.Ceil(opts.ValidationFraction * float64(rest)))
	train = rest - validation

	if test < 1 || validation < 1 || train < 1 {
		return 0, 0, 0, &config.ConfigurationError{
			Field:  "fractions",
			Value:  fmt.Sprintf("test=%g validation=%g", opts.TestFraction, opts.ValidationFraction),
			Reason: fmt.Sprintf("%d files give train=%d validation=%d test=%d", n, max(train, 0), max(validation, 0), max(test, 0)),
		}
	}
	return train, validation, test, nil
}

// Files partitions whole files into train, validation and test groups.
// The same files in the same order with the same seed always give the
// same groups; each group keeps the input order.
func Files(files []string, opts Options) (*Result, error) {
	nTrain, nVal, nTest, err := Sizes(len(files), opts)
	if err != nil {
		return nil, err
	}

	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	perm := r.Perm(len(files))

	group := make([]int, len(files)) // 0 train, 1 validation, 2 test
	for rank, i := range perm {
		switch {
		case rank < nTest:
			group[i] = 2
		case rank < nTest+nVal:
			group[i] = 1
		}
	}

	res := &Result{}
	for i, f := range files {
		switch group[i] {
		case 0:
			res.Train = append(res.Train, f)
		case 1:
			res.Validation = append(res.Validation, f)
		case 2:
			res.Test = append(res.Test, f)
		}
	}
	debug.Log("split", "seed=%d files=%d train=%d validation=%d test=%d", opts.Seed, len(files), nTrain, nVal, nTest)
	return res, nil
}
