package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFollowsOutputChanges(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	For("tokenize").Info("processed", "path", "a.mid", "tokens", 12)

	line := buf.String()
	assert.Contains(t, line, "tokenize")
	assert.Contains(t, line, "processed")
	assert.Contains(t, line, "path=a.mid")
	assert.Contains(t, line, "tokens=12")
}

func TestEnableWritesDebugFile(t *testing.T) {
	var console bytes.Buffer
	SetOutput(&console)
	defer SetOutput(nil)

	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	require.NoError(t, Enable(path))
	Log("split", "files=%d", 7)
	Disable()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Debug logging started")
	assert.Contains(t, string(data), "files=7")

	console.Reset()
	Log("split", "hidden")
	assert.Empty(t, console.String(), "debug lines are dropped once disabled")
}

func TestLogEverySamplesPerMessage(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	LogEvery(3, "train", "batch", "loss", 1.5)
	assert.Empty(t, buf.String(), "nothing is counted while disabled")

	path := filepath.Join(t.TempDir(), "debug.log")
	require.NoError(t, Enable(path))
	defer Disable()

	for i := 0; i < 9; i++ {
		LogEvery(3, "train", "batch", "loss", 1.5)
		LogEvery(9, "train", "epoch")
	}
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "batch"))
	assert.Contains(t, out, "count=9")
	assert.Equal(t, 1, strings.Count(out, "epoch"))
}
