package logging

import (
	"os"
	"strings"

	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 10
)

type LoggerSetupParams struct {
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
	Rotation      Rotation

	Environment string
	Release     string
	Sentry      SentryParams
}

// Rotation configures the lumberjack file writer. Zero sizes fall back to 50MB x 10 files, zero age keeps forever.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type SentryParams struct {
	Enabled          bool
	DSN              string
	ServerName       string
	TracesSampleRate float64
	// MinLevel is the least severe level forwarded to sentry, "error" when empty.
	MinLevel string
}

func Setup(params LoggerSetupParams) {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if params.Sentry.Enabled {
		setupSentry(params)
	}

	logrus.SetLevel(GetLevel(params.LogLevel))

	if params.LogFileName == "" {
		logrus.SetOutput(os.Stdout)
		logrus.Println("writing logs only to STDOUT")
		return
	}

	fileWriter := newFileWriter(params.LogFileName, params.Rotation)
	if params.LogToStdout {
		logrus.Println("writing logs to file and STDOUT")
		logrus.SetOutput(pkg.NewCombinedWriter(os.Stdout, fileWriter))
	} else {
		logrus.SetOutput(fileWriter)
	}
}

func setupSentry(params LoggerSetupParams) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              params.Sentry.DSN,
		Environment:      params.Environment,
		Release:          params.Release,
		ServerName:       params.Sentry.ServerName,
		TracesSampleRate: params.Sentry.TracesSampleRate,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return
	}

	logrus.AddHook(NewSentryHook(SentryLevels(params.Sentry.MinLevel)))
	logrus.Infof("sentry set up, forwarding [%s] and above", GetLevel(orDefault(params.Sentry.MinLevel, "error")))
}

func newFileWriter(fileName string, rotation Rotation) *lumberjack.Logger {
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}
	if rotation.MaxSizeMB <= 0 {
		rotation.MaxSizeMB = defaultMaxSizeMB
	}
	if rotation.MaxBackups <= 0 {
		rotation.MaxBackups = defaultMaxBackups
	}

	return &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		LocalTime:  false, // false -> use UTC
		Compress:   rotation.Compress,
	}
}

// SentryLevels returns minLevel and every more severe level.
func SentryLevels(minLevel string) []logrus.Level {
	least := GetLevel(orDefault(minLevel, "error"))
	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= least {
			levels = append(levels, level)
		}
	}
	return levels
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "info":
		return logrus.InfoLevel
	case "trace":
		return logrus.TraceLevel
	case "warn":
		return logrus.WarnLevel
	default:
		return logrus.TraceLevel
	}
}
