package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLogger(t *testing.T) {
	mock := NewMockLogger()

	mock.Info("Test message", "key", "value")
	mock.Debug("Debug message")
	mock.Warn("Warning message")
	mock.Error("Error message", "error", "test error")

	assert.Len(t, *mock.Messages, 4)
	assert.True(t, mock.HasMessage("INFO", "Test message"))
	assert.True(t, mock.HasMessageContaining("ERROR", "Error"))
	assert.Equal(t, 1, mock.Count("WARN"))

	scoped := mock.With("store", "cache")
	scoped.Warn("store reset")

	last := (*mock.Messages)[len(*mock.Messages)-1]
	assert.Equal(t, "store reset", last.Msg)
	assert.True(t, mock.HasAttr("WARN", "store", "cache"))

	mock.Clear()
	assert.Empty(t, *mock.Messages)
}

func TestLoggerInterface(_ *testing.T) {
	var _ Logger = &SlogLogger{}
	var _ Logger = &MockLogger{}
}

func TestSetupLoggerWithFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "warlens.log")

	SetupLogger(Options{Format: "json", File: logFile, Debug: true})
	t.Cleanup(func() {
		_ = Close()
		SetupLogger(Options{})
	})

	Info("written to file", "component", "test")
	require.NoError(t, Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestWithStore(t *testing.T) {
	mock := NewMockLogger()
	WithStore(mock, "/data/summary.json").Warn("Discarding unreadable summary store", "store", "json")

	assert.True(t, mock.HasAttr("WARN", "store_path", "/data/summary.json"))
	assert.True(t, mock.HasAttr("WARN", "store", "json"))
	assert.NotNil(t, WithStore(nil, "summary.json"))
}
