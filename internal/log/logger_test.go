package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" warning ", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Output: &buf})

	l.Debug("hidden")
	l.Info("scanned", "files", 3, "skipped", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO: scanned files=3 skipped=1")
	assert.NotContains(t, out, "\033[", "buffers are not terminals")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Output: &buf})
	l.SetJSONOutput(true)

	l.Warn("method skipped", "file", "a.go", "err", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "method skipped", entry["message"])
	assert.Equal(t, "a.go", entry["file"])
	assert.Equal(t, "boom", entry["err"])
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Output: &buf})
	l.SetLevel(ErrorLevel)

	l.Warn("quiet")
	assert.Empty(t, buf.String())

	l.Error("loud")
	assert.Contains(t, buf.String(), "ERROR: loud")
}

func TestProgressSpinner_SilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewProgressSpinner(&buf, "working")
	s.Start()
	s.Message("still working")
	s.Stop()

	assert.Empty(t, buf.String())
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "plain", formatMessage("plain"))
	assert.Equal(t, "merged file=a.go err=boom", formatMessage("merged", "file", "a.go", "err", errors.New("boom")))
	assert.Equal(t, "dangling n=1", formatMessage("dangling", "n", 1, "orphan"))
	assert.Equal(t, "bad key", formatMessage("bad key", 3, "x"))
}
