package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gmbtravels/gmbservice/internal"
	"github.com/gmbtravels/gmbservice/internal/config"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	_ "github.com/gmbtravels/gmbservice/internal/docstore/memstore"
	_ "github.com/gmbtravels/gmbservice/internal/docstore/mongostore"
	_ "github.com/gmbtravels/gmbservice/internal/docstore/psqlstore"
	"github.com/gmbtravels/gmbservice/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	versionInfo, versionErr := tryGetLastCommitHash()

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		},
		Environment: cfg.Environment,
		Release:     versionInfo,
		Sentry: logging.SentryParams{
			Enabled:          cfg.SentryEnabled,
			DSN:              cfg.Env.SentryDSN,
			ServerName:       "gmb-service",
			TracesSampleRate: cfg.SentryTracesSampleRate,
			MinLevel:         cfg.SentryMinLevel,
		},
	})

	log.Warnf("---->> running in [%s] environment", cfg.Environment)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)
	log.Debugf("document store backends: %v", docstore.Schemes())

	if versionErr != nil {
		log.Tracef("failed to get last commit hash / version info: %s", versionErr)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	if cfg.Env.HoneycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:      cfg,
			VersionInfo: versionInfo,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	if err := server.GracefulShutdown(); err != nil {
		log.Errorf("graceful shutdown: %s", err)
		os.Exit(1)
	}
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(stdout)), nil
}
