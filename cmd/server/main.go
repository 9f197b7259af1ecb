// Package main is the entry point for the station comments server.
//
// main stays small: load configuration, build the logger, make sure the
// SQLite directory exists, then hand everything to internal/server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/station-comments/internal/config"
	"github.com/sakif/station-comments/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "path to a .env file, ignored if missing")
	flag.Parse()

	// Bootstrap logger until the configured level is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.Log.SlogLevel() // already validated by Load
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.Database.Driver == config.DriverSQLite && cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
