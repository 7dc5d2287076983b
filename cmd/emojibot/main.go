// Command emojibot trades the emoji-stock exchange. It loads configuration,
// validates it, sets up signal handling, and runs the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/emojibot/internal/app"
	"github.com/alanyoungcy/emojibot/internal/config"
)

const defaultConfigPath = "config.toml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file (empty for defaults and env only)")
	mode := flag.String("mode", "", "override the configured mode: trade, monitor or register")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 1
	}
	if *mode != "" {
		cfg.Mode = strings.ToLower(*mode)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("emojibot starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", path),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
			return 0
		}
		logger.Error("application exited with error",
			slog.String("error", err.Error()),
		)
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	logger.Info("emojibot stopped")
	return 0
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
