package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"go-midivel/config"
	"go-midivel/dataset"
	"go-midivel/debug"
	"go-midivel/midi"
	"go-midivel/model"
	"go-midivel/split"
	"go-midivel/token"
)

// Stage names reported through OnStage
const (
	StageTrain      = "train"
	StageValidation = "validation"
	StageTest       = "test"
	StageFit        = "fit"
	StageStats      = "stats"
)

// Velocity runs the next-velocity data pipeline over one directory
type Velocity struct {
	Dataset  config.DatasetConfig
	Training config.TrainingConfig

	// Fit trains the linear baseline after the datasets are built
	Fit bool
	// Progress receives the training progress bar; nil for none
	Progress io.Writer
	Logger   *log.Logger

	OnStage func(name string, total int)
	OnFile  func(token.FileProgress)

	// Read overrides the MIDI reader (tests)
	Read token.ReadFunc
}

// SplitReport is what one split produced
type SplitReport struct {
	Name    string
	Files   []string
	Tokens  []token.Token
	Skipped []*midi.FileReadError
	Data    *dataset.Dataset
}

// Prediction is the model output for one test window
type Prediction struct {
	Window    int
	Predicted float64
	Actual    float64
}

// VelocityReport is the outcome of Velocity.Run
type VelocityReport struct {
	Window                  int
	Train, Validation, Test *SplitReport
	History                 []model.EpochLoss
	Example                 *Prediction // nil without a fit or test windows
}

// Splits returns the three reports in pipeline order
func (r *VelocityReport) Splits() []*SplitReport {
	return []*SplitReport{r.Train, r.Validation, r.Test}
}

// Summary renders the counts and shapes the pipeline prints
func (r *VelocityReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Training tokens: %d, Validation tokens: %d, Test tokens: %d\n",
		len(r.Train.Tokens), len(r.Validation.Tokens), len(r.Test.Tokens))
	fmt.Fprintf(&b, "Training sequences: %s, Validation sequences: %s, Test sequences: %s",
		r.Train.Data.ShapeString(), r.Validation.Data.ShapeString(), r.Test.Data.ShapeString())

	skipped := 0
	for _, s := range r.Splits() {
		skipped += len(s.Skipped)
	}
	if skipped > 0 {
		fmt.Fprintf(&b, "\nSkipped files: %d", skipped)
	}
	if n := len(r.History); n > 0 {
		last := r.History[n-1]
		fmt.Fprintf(&b, "\nEpoch %d/%d, Training Loss: %g, Validation Loss: %g", last.Epoch, n, last.Train, last.Validation)
	}
	if r.Example != nil {
		fmt.Fprintf(&b, "\nPredicted Velocity: %.2f (actual %g)", r.Example.Predicted, r.Example.Actual)
	}
	return b.String()
}

func (v *Velocity) logger() *log.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return debug.For("velocity")
}

func (v *Velocity) stage(name string, total int) {
	if v.OnStage != nil {
		v.OnStage(name, total)
	}
}

func (v *Velocity) tokenizer() (*token.Tokenizer, error) {
	unit, err := midi.ParseTimeUnit(v.Dataset.TimeUnit)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "dataset.timeUnit", Value: v.Dataset.TimeUnit, Reason: err.Error()}
	}
	boundary, ok := token.ParseBoundary(v.Dataset.Boundary)
	if !ok {
		return nil, &config.ConfigurationError{Field: "dataset.boundary", Value: v.Dataset.Boundary, Reason: "must be none or sentinel"}
	}
	return token.New(token.Options{
		Unit:      unit,
		Boundary:  boundary,
		SkipDrums: v.Dataset.SkipDrums,
		Workers:   v.Dataset.Workers,
		Read:      v.Read,
		Logger:    v.logger().WithPrefix("tokenize"),
		OnFile:    v.OnFile,
	}), nil
}

// Run lists dir, splits the files, tokenizes each split and builds the
// windowed datasets. Configuration and window errors abort; unreadable
// files are skipped.
func (v *Velocity) Run(ctx context.Context, dir string) (*VelocityReport, error) {
	l := v.logger()
	if v.Dataset.Window <= 0 {
		return nil, &dataset.InvalidWindowError{Window: v.Dataset.Window}
	}
	tk, err := v.tokenizer()
	if err != nil {
		return nil, err
	}

	files, err := split.ListMIDIFiles(dir)
	if err != nil {
		return nil, err
	}
	groups, err := split.Files(files, split.Options{
		TestFraction:       v.Dataset.TestFraction,
		ValidationFraction: v.Dataset.ValidationFraction,
		Seed:               v.Dataset.Seed,
	})
	if err != nil {
		return nil, err
	}
	train, val, test := groups.Sizes()
	l.Info("split", "dir", dir, "files", len(files), "train", train, "validation", val, "test", test)

	report := &VelocityReport{Window: v.Dataset.Window}
	for _, s := range []struct {
		name  string
		files []string
		dst   **SplitReport
	}{
		{StageTrain, groups.Train, &report.Train},
		{StageValidation, groups.Validation, &report.Validation},
		{StageTest, groups.Test, &report.Test},
	} {
		v.stage(s.name, len(s.files))
		sr, err := v.build(ctx, tk, s.name, s.files)
		if err != nil {
			return nil, err
		}
		*s.dst = sr
	}

	if !v.Fit {
		return report, nil
	}
	if err := v.fit(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// Split tokenizes files as one split and windows the result
func (v *Velocity) Split(ctx context.Context, name string, files []string) (*SplitReport, error) {
	tk, err := v.tokenizer()
	if err != nil {
		return nil, err
	}
	return v.build(ctx, tk, name, files)
}

func (v *Velocity) build(ctx context.Context, tk *token.Tokenizer, name string, files []string) (*SplitReport, error) {
	res, err := tk.TokenizeFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s split: %w", name, err)
	}
	d, err := dataset.Build(res.Tokens, v.Dataset.Window)
	if err != nil {
		return nil, fmt.Errorf("%s split: %w", name, err)
	}
	v.logger().Info("dataset", "split", name, "files", res.Files, "tokens", len(res.Tokens), "shape", d.ShapeString())
	return &SplitReport{
		Name:    name,
		Files:   files,
		Tokens:  res.Tokens,
		Skipped: res.Skipped,
		Data:    d,
	}, nil
}

func (v *Velocity) fit(ctx context.Context, r *VelocityReport) error {
	v.stage(StageFit, v.Training.Epochs)
	m, err := model.NewLinear(model.LinearOptions{
		Window:       r.Window,
		LearningRate: v.Training.LearningRate,
		TimeScale:    v.Training.TimeScale,
	})
	if err != nil {
		return err
	}
	r.History, err = model.Fit(ctx, m, r.Train.Data, r.Validation.Data, model.FitOptions{
		Epochs:    v.Training.Epochs,
		BatchSize: v.Training.BatchSize,
		Seed:      v.Dataset.Seed,
		Progress:  v.Progress,
		Logger:    v.logger().WithPrefix("train"),
	})
	if err != nil {
		return err
	}

	if r.Test.Data.Len() == 0 {
		v.logger().Warn("no test windows, skipping example prediction")
		return nil
	}
	pred, err := model.PredictOne(m, r.Test.Data.Flat(0))
	if err != nil {
		return err
	}
	if math.IsNaN(pred) {
		return fmt.Errorf("prediction for test window 0 is NaN")
	}
	r.Example = &Prediction{Window: 0, Predicted: pred, Actual: r.Test.Data.Targets[0]}
	return nil
}
