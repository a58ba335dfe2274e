package logger

import (
	"testing"

	"donation_match_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"debug", "release"} {
		for _, format := range []string{"console", "json"} {
			l, err := New(&config.Config{GinMode: mode, LogLevel: "warn", LogFormat: format})
			require.NoError(t, err, "mode=%s format=%s", mode, format)
			assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
			assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
		}
	}
	assert.NoError(t, Sync(nil))
}
