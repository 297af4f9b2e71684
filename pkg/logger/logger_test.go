package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

// setSingletonForTest temporarily replaces the singleton logger and restores
// the original when the test completes.
func setSingletonForTest(t *testing.T, l *zap.SugaredLogger) {
	t.Helper()
	prev := singleton.Load()
	singleton.Store(l)
	t.Cleanup(func() { singleton.Store(prev) })
}

func TestUnstructuredLogsCheck(t *testing.T) { //nolint:paralleltest // mutates env
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"Default Case", "", false},
		{"Explicitly True", "true", true},
		{"Explicitly False", "false", false},
		{"Invalid Value", "not-a-bool", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UNSTRUCTURED_LOGS", tt.envValue)
			assert.Equal(t, tt.expected, unstructuredLogs())
		})
	}
}

func TestLogLevels(t *testing.T) { //nolint:paralleltest // mutates singleton
	core, logs := observer.New(zapcore.DebugLevel)
	setSingletonForTest(t, zap.New(core).Sugar())

	Debugf("debug %s", "message")
	Infof("info %s", "message")
	Warnf("warn %s", "message")
	Errorf("error %s", "message")
	Infow("structured", "key", "value")

	entries := logs.All()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "debug message", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "structured", entries[4].Message)
	assert.Equal(t, "value", entries[4].ContextMap()["key"])
}

func TestGetReturnsCurrentLogger(t *testing.T) { //nolint:paralleltest // mutates singleton
	l := zap.NewNop().Sugar()
	setSingletonForTest(t, l)
	assert.Same(t, l, Get())
}

func TestInitializeReplacesDefault(t *testing.T) { //nolint:paralleltest // mutates singleton
	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	Initialize()
	require.NotNil(t, Get())
}
