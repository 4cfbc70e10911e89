package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	file    *os.File
	out     io.Writer = os.Stderr
	enabled bool
	sink              = &proxy{w: os.Stderr}
	root              = newLogger(sink, log.InfoLevel)
)

// proxy lets loggers derived from root follow output changes
type proxy struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *proxy) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Write(b)
}

func (p *proxy) set(w io.Writer) {
	p.mu.Lock()
	p.w = w
	p.mu.Unlock()
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
	})
}

// rebuild points the sink at the current writers; caller holds mu.
// Loggers from For keep the level they were created with.
func rebuild() {
	w := out
	level := log.InfoLevel
	if enabled && file != nil {
		w = io.MultiWriter(out, file)
		level = log.DebugLevel
	}
	sink.set(w)
	root.SetLevel(level)
}

// Enable tees debug-level logging into the file at path
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	rebuild()

	fmt.Fprintf(file, "[%s] === Debug logging started ===\n", time.Now().Format("15:04:05.000"))
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	enabled = false
	rebuild()
	if file != nil {
		file.Close()
		file = nil
	}
}

// SetOutput redirects the console side of logging (the TUI owns the
// terminal while running); nil restores stderr
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	rebuild()
}

// Logger returns the root logger
func Logger() *log.Logger {
	return root
}

// For returns a logger prefixed with category
func For(category string) *log.Logger {
	return root.WithPrefix(category)
}

// Log writes a debug-level message under category
func Log(category, format string, args ...any) {
	if !Enabled() {
		return
	}
	root.WithPrefix(category).Debug(fmt.Sprintf(format, args...))
}

// Enabled reports whether the debug file is open
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

type sampleKey struct {
	category, msg string
}

var samples = make(map[sampleKey]int)

// LogEvery writes msg at debug level on every nth call per category and
// message, with the running count appended to keyvals
func LogEvery(n int, category, msg string, keyvals ...any) {
	mu.Lock()
	if !enabled {
		mu.Unlock()
		return
	}
	k := sampleKey{category, msg}
	samples[k]++
	count := samples[k]
	mu.Unlock()

	if n <= 1 || count%n == 0 {
		root.WithPrefix(category).Debug(msg, append(keyvals, "count", count)...)
	}
}
