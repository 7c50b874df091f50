package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/faunatrack/server/internal/app"
	"github.com/faunatrack/server/internal/config"
	"github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/migrate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	database, err := db.OpenWithRetry(ctx, cfg.DatabaseURL, cfg.DBConnectAttempts, cfg.DBConnectDelay, func(attempt int, err error) {
		logger.Warn("database not ready", "attempt", attempt, "error", err)
	})
	if err != nil {
		logger.Error("connect db", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := migrate.Run(ctx, database); err != nil {
			logger.Error("run migrations", "error", err)
			os.Exit(1)
		}
	}

	application := app.New(cfg, database, logger)
	if err := application.Run(ctx); err != nil {
		logger.Error("run server", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
