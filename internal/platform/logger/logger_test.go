package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerConfig_ToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for level, want := range cases {
		cfg := &LoggerConfig{Level: level}
		assert.Equal(t, want, cfg.ToZapLevel(), level)
	}
}

func TestDefaultConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_OUTPUT_FILE", "stderr")

	cfg := DefaultConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.OutputFile)
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gateway.log")
	l := New(&LoggerConfig{Level: "warn", Format: "json", OutputFile: path})
	require.NotNil(t, l)

	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.FileExists(t, path)

	named := l.Named("query").With()
	assert.NotNil(t, named.Zap())
}
