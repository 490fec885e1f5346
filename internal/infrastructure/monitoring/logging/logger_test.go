package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/turtacn/pathway-overlay/pkg/errors"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), buf, zapcore.DebugLevel)
	return NewLoggerFromCore(core), buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"INFO":    zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"Warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestZapLogger_LevelsWrite(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
	out := buf.String()
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, `"level":"`+lvl+`"`)
	}
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Named("catalog").With(String(FieldResource, "IntAct"), Int("records", 3)).Info("loaded")
	out := buf.String()
	assert.Contains(t, out, `"logger":"catalog"`)
	assert.Contains(t, out, `"resource":"IntAct"`)
	assert.Contains(t, out, `"records":3`)
}

func TestZapLogger_WithError_AppError(t *testing.T) {
	l, buf := newTestLogger(t)
	err := apperrors.New(apperrors.ErrCodeResourceLoad, "fetch failed")
	l.WithError(err).Error("catalog load")
	out := buf.String()
	assert.Contains(t, out, `"error_code":"OVL_001"`)
	assert.Contains(t, out, `"error":"[OVL_001] fetch failed"`)
}

func TestZapLogger_WithError_PlainAndNil(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(errors.New("boom")).Warn("plain")
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.NotContains(t, buf.String(), "error_code")

	buf.Reset()
	l.WithError(nil).Info("none")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestErrFields_Nil(t *testing.T) {
	assert.Nil(t, ErrFields(nil))
	assert.Equal(t, Field{Key: "error", Value: "<nil>"}, Err(nil))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.WithError(errors.New("e")))
	assert.Equal(t, l, l.Named("n"))
	assert.NoError(t, l.Sync())
}

func TestDefault_SetAndRestore(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default(), "nil must be ignored")
}

func TestLogOperationDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "fit", time.Now(), String(FieldDiagram, "R-HSA-1"))
	out := buf.String()
	assert.Contains(t, out, "operation completed")
	assert.Contains(t, out, `"operation":"fit"`)
	assert.Contains(t, out, "duration_ms")

	buf.Reset()
	LogOperationDuration(l, "load", time.Now().Add(-2*time.Second))
	assert.Contains(t, buf.String(), "slow operation")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
