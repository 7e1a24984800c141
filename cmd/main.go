package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"focus-service/internal/cache"
	"focus-service/internal/config"
	"focus-service/internal/server"
)

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "text" || cfg.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStore connects to Redis when configured and falls back to an
// in-process store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) interface {
	server.ResultStore
	Close() error
} {
	if cfg.RedisAddr == "" {
		logger.Info("Redis disabled, keeping results in memory")
		return cache.NewMemoryStore()
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisTTL)
	if err != nil {
		logger.Warn("Redis unavailable, keeping results in memory", slog.Any("error", err))
		return cache.NewMemoryStore()
	}
	logger.Info("Connected to Redis", slog.String("addr", cfg.RedisAddr))
	return redisClient
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Starting focus service",
		slog.String("environment", cfg.Environment),
		slog.Int("presets", len(cfg.Presets)),
		slog.String("default_preset", cfg.DefaultPreset))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	srv := server.New(server.Options{
		Store:     store,
		Presets:   cfg.Presets,
		Base:      cfg.BaseConfig(),
		QueueSize: cfg.QueueSize,
		Logger:    logger,
	})

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		logger.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
