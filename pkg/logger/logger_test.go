package logger

import (
	"learner_insight/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, Log)
	assert.NotPanics(t, func() { Log.Info("before init") })
}

func TestLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	assert.Equal(t, zapcore.DebugLevel, Level(cfg))

	cfg.Server.Mode = "release"
	cfg.Log.Level = "warn"
	assert.Equal(t, zapcore.WarnLevel, Level(cfg))

	cfg.Log.Level = "chatty"
	assert.Equal(t, zapcore.InfoLevel, Level(cfg))
}
