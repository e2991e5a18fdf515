package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gmbtravels/gmbservice/internal/logging"
	"github.com/gmbtravels/gmbservice/internal/smoketest"

	log "github.com/sirupsen/logrus"
)

func main() {
	baseURL := flag.String("base-url", envOr("GMB_BASE_URL", smoketest.DefaultBaseURL), "base API URL (default from GMB_BASE_URL)")
	username := flag.String("username", os.Getenv("GMB_ADMIN_USERNAME"), "admin username (default from GMB_ADMIN_USERNAME)")
	password := flag.String("password", os.Getenv("GMB_ADMIN_PASSWORD"), "admin password (default from GMB_ADMIN_PASSWORD)")
	timeout := smoketest.TimeoutFlag(envTimeout("GMB_HTTP_TIMEOUT", smoketest.DefaultTimeout))
	flag.Var(&timeout, "timeout", "HTTP timeout in seconds or as a duration (default from GMB_HTTP_TIMEOUT)")
	retries := flag.Int("retries", envInt("GMB_HTTP_RETRIES", smoketest.DefaultRetries), "HTTP retry attempts")
	destructive := flag.Bool("destructive", false, "run create/update/delete checks")
	jsonOut := flag.String("json-out", "gmb_test_results.json", "write JSON summary to file")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    *logLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tester := smoketest.NewTester(smoketest.Params{
		BaseURL:     *baseURL,
		Username:    *username,
		Password:    *password,
		Timeout:     time.Duration(timeout),
		Retries:     *retries,
		Destructive: *destructive,
	})
	ok := tester.Run(ctx)

	if err := writeSummary(*jsonOut, tester.Summary()); err != nil {
		log.Errorf("write json results: %s", err)
		ok = false
	} else {
		log.Infof("wrote JSON results to %s", *jsonOut)
	}

	if !ok {
		stop()
		os.Exit(1)
	}
}

func writeSummary(path string, summary smoketest.Summary) error {
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envTimeout(key string, fallback time.Duration) time.Duration {
	d, err := smoketest.ParseTimeout(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
