package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"attendboard/internal/config"
	"attendboard/internal/logger"
	"attendboard/internal/notify"
	"attendboard/internal/queue"
	"attendboard/internal/store"
)

// Worker consumes roster notifications published by the api over Redis and
// writes them to the structured log.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel).With(slog.String("component", "worker"))

	if cfg.QueueBackend != "redis" {
		log.Error("worker needs QUEUE_BACKEND=redis", slog.String("queue", cfg.QueueBackend))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redis := store.NewRedis(cfg.RedisAddr)
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		log.Error("redis connect failed", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		os.Exit(1)
	}

	q := queue.NewRedisQueue(redis.Client, queue.DefaultKey)
	log.Info("worker started, waiting for notifications", slog.String("key", queue.DefaultKey))
	if err := notify.Drain(ctx, q, notify.Log{Logger: log}); err != nil {
		log.Error("queue consume failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}
