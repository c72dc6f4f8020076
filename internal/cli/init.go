// Package cli implements boletim-cli, a terminal edit surface for the
// daily attendance table served by the Data Provider.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	applog "boletim/internal/log"
)

// Environment defaults for persistent flags.
const (
	envServer  = "BOLETIM_SERVER"
	defaultURL = "http://localhost:8080"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// setupLogger sends CLI logs to w, at debug level when debug is set and
// warnings only otherwise so they do not mix with rendered output.
func setupLogger(w io.Writer, debug bool) *applog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: w})
	applog.SetDefault(logger)
	return logger
}

func defaultServer() string {
	if v := os.Getenv(envServer); v != "" {
		return v
	}
	return defaultURL
}
