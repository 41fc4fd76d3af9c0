package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, Prefix: "test"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, want := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]", "test:"} {
		assert.Contains(t, output, want)
	}
}

func TestLogger_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")

	output := buf.String()
	assert.NotContains(t, output, "[DEBUG]")
	assert.NotContains(t, output, "[INFO]")
	assert.Contains(t, output, "[WARN]")
}

func TestLogger_FormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("loading %s (%d bytes)", "a.py", 12)

	assert.Contains(t, buf.String(), "loading a.py (12 bytes)")
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).
		WithComponent("session").
		WithField("path", "/tmp/settings.json")

	logger.Info("saved")

	assert.Contains(t, buf.String(), "{component=session, path=/tmp/settings.json}")
}

func TestLogger_DerivedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Level: LevelInfo, Output: &buf})
	child := root.WithComponent("device")

	root.SetLevel(LevelError)
	child.Warn("ignored")

	assert.Empty(t, buf.String())
	assert.Equal(t, LevelError, child.Level())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing to see")
	logger.WithComponent("x").Info("still nothing")
}

func TestOpenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	fc := DefaultFileConfig(dir)

	w, err := OpenFile(fc)
	require.NoError(t, err)

	logger := New(Config{Output: w, Prefix: "microstorm"})
	logger.Info("hello file")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(fc.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
}
