package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return Wrap(zap.New(core)), logs
}

func TestLogger_Fields(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.Named("Steam").Info("Logged on", "result", "OK", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Steam", entries[0].LoggerName)
	assert.Equal(t, "Logged on", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"result": "OK", "attempt": int64(2)}, entries[0].ContextMap())
}

func TestLogger_ErrorField(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.Error("Publish failed", "error", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
}

func TestLogger_OddContext(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.Warn("odd", "key", "value", "dangling")

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "value", ctx["key"])
	assert.Equal(t, "dangling", ctx["extra"])
}

func TestLogger_Level(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	l.Debug("hidden")
	l.With("component", "Router").Info("shown")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Router", entries[0].ContextMap()["component"])
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = New(Config{Level: "json", Format: "json"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "INFO", Format: "json"})
	assert.NoError(t, err)
}
