package token

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"go-midivel/debug"
	"go-midivel/midi"
)

// Boundary selects what separates files inside one split
type Boundary int

const (
	// BoundarySentinel puts Sentinel between consecutive files
	BoundarySentinel Boundary = iota
	// BoundaryNone concatenates files back to back
	BoundaryNone
)

// ParseBoundary maps a config name to a Boundary
func ParseBoundary(name string) (Boundary, bool) {
	switch name {
	case "sentinel":
		return BoundarySentinel, true
	case "none":
		return BoundaryNone, true
	}
	return 0, false
}

// ReadFunc loads one MIDI file
type ReadFunc func(path string) (*midi.File, error)

// FileProgress is reported once per processed file
type FileProgress struct {
	Index  int
	Total  int
	Path   string
	Tokens int
	Err    error // non-nil when the file was skipped
}

// Options configures a Tokenizer
type Options struct {
	Unit      midi.TimeUnit
	Boundary  Boundary
	SkipDrums bool
	Workers   int // files tokenized in parallel; <= 1 is sequential
	Read      ReadFunc
	Logger    *log.Logger
	OnFile    func(FileProgress) // may be called from several goroutines
}

// Tokenizer tokenizes lists of files
type Tokenizer struct {
	opts Options
	log  *log.Logger
}

// Result is the concatenated token stream of one file list
type Result struct {
	Tokens  []Token
	Files   int // files that contributed
	Skipped []*midi.FileReadError
}

// New creates a Tokenizer with defaults filled in
func New(opts Options) *Tokenizer {
	if opts.Read == nil {
		unit := opts.Unit
		opts.Read = func(path string) (*midi.File, error) {
			return midi.ReadFile(path, unit)
		}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	l := opts.Logger
	if l == nil {
		l = debug.For("tokenize")
	}
	return &Tokenizer{opts: opts, log: l}
}

// TokenizeFile reads and tokenizes a single file
func (t *Tokenizer) TokenizeFile(path string) ([]Token, error) {
	f, err := t.opts.Read(path)
	if err != nil {
		return nil, err
	}
	return Tokenize(f.Events(), t.opts.SkipDrums), nil
}

type fileResult struct {
	tokens []Token
	err    error
}

// TokenizeFiles tokenizes paths and concatenates them in list order.
// Files that fail with *midi.FileReadError are logged and skipped; any
// other error aborts.
func (t *Tokenizer) TokenizeFiles(ctx context.Context, paths []string) (*Result, error) {
	results := make([]fileResult, len(paths))

	if t.opts.Workers == 1 || len(paths) < 2 {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = t.one(i, len(paths), path)
			if fatal(results[i].err) {
				return nil, results[i].err
			}
		}
	} else {
		if err := t.parallel(ctx, paths, results); err != nil {
			return nil, err
		}
	}

	return t.assemble(results), nil
}

func (t *Tokenizer) parallel(ctx context.Context, paths []string, results []fileResult) error {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(t.opts.Workers, len(paths)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = t.one(i, len(paths), paths[i])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range results {
		if fatal(r.err) {
			return r.err
		}
	}
	return nil
}

// one tokenizes a single file and reports progress
func (t *Tokenizer) one(i, total int, path string) fileResult {
	tokens, err := t.TokenizeFile(path)

	var rerr *midi.FileReadError
	switch {
	case err == nil:
		t.log.Info("processed", "file", path, "tokens", len(tokens))
	case errors.As(err, &rerr):
		t.log.Warn("skipping file", "file", path, "kind", rerr.Kind, "err", rerr.Err)
	default:
		t.log.Error("tokenize failed", "file", path, "err", err)
	}

	if t.opts.OnFile != nil {
		t.opts.OnFile(FileProgress{Index: i, Total: total, Path: path, Tokens: len(tokens), Err: err})
	}
	return fileResult{tokens: tokens, err: err}
}

func fatal(err error) bool {
	var rerr *midi.FileReadError
	return err != nil && !errors.As(err, &rerr)
}

// assemble joins per-file results in list order, dropping skipped and empty files
func (t *Tokenizer) assemble(results []fileResult) *Result {
	res := &Result{}
	for _, r := range results {
		if r.err != nil {
			var rerr *midi.FileReadError
			if errors.As(r.err, &rerr) {
				res.Skipped = append(res.Skipped, rerr)
			}
			continue
		}
		if len(r.tokens) == 0 {
			continue
		}
		if res.Files > 0 && t.opts.Boundary == BoundarySentinel {
			res.Tokens = append(res.Tokens, Sentinel)
		}
		res.Tokens = append(res.Tokens, r.tokens...)
		res.Files++
	}
	return res
}
