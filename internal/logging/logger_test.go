package logging

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("ERROR"))
	assert.Equal(t, logrus.InfoLevel, GetLevel("info"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.FatalLevel, GetLevel("fatal"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("unknown"))
}

func TestSetup_LogFile(t *testing.T) {
	defer logrus.SetOutput(logrus.StandardLogger().Out)

	logFile := filepath.Join(t.TempDir(), "gmb-service")
	Setup(LoggerSetupParams{
		LogFileName: logFile,
		LogToStdout: true,
		LogLevel:    "info",
	})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())

	logrus.Info("vehicle list requested")
	assert.FileExists(t, logFile+".log")
}

func TestNewFileWriter(t *testing.T) {
	dir := t.TempDir()

	w := newFileWriter(filepath.Join(dir, "gmb-service"), Rotation{})
	assert.Equal(t, filepath.Join(dir, "gmb-service.log"), w.Filename)
	assert.Equal(t, defaultMaxSizeMB, w.MaxSize)
	assert.Equal(t, defaultMaxBackups, w.MaxBackups)
	assert.Zero(t, w.MaxAge)
	assert.False(t, w.Compress)

	w = newFileWriter(filepath.Join(dir, "service.log"), Rotation{MaxSizeMB: 5, MaxBackups: 3, MaxAgeDays: 30, Compress: true})
	assert.Equal(t, filepath.Join(dir, "service.log"), w.Filename)
	assert.Equal(t, 5, w.MaxSize)
	assert.Equal(t, 3, w.MaxBackups)
	assert.Equal(t, 30, w.MaxAge)
	assert.True(t, w.Compress)
}

func TestSentryLevels(t *testing.T) {
	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}, SentryLevels(""))
	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}, SentryLevels("warn"))
	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel}, SentryLevels("fatal"))
}

func TestSentryHook(t *testing.T) {
	hook := NewSentryHook([]logrus.Level{logrus.ErrorLevel})
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())

	// no sentry client bound to the hub, the event is dropped silently
	err := hook.Fire(&logrus.Entry{
		Level:   logrus.ErrorLevel,
		Message: "persistence failure",
		Time:    time.Now(),
		Data: logrus.Fields{
			logrus.ErrorKey: errors.New("connection refused"),
			"collection":    "vehicles",
		},
	})
	require.NoError(t, err)
}
