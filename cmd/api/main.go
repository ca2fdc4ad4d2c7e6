package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
	"attendboard/internal/config"
	"attendboard/internal/httpapi"
	"attendboard/internal/httpmiddleware"
	"attendboard/internal/logger"
	"attendboard/internal/metrics"
	"attendboard/internal/notify"
	"attendboard/internal/queue"
	"attendboard/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("http server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// sessionBackend is the configured session store plus what must be closed
// on shutdown.
type sessionBackend struct {
	sessions auth.SessionStore
	health   httpapi.Pinger
	closer   io.Closer
	purger   *store.SQLSessions
}

func openSessions(ctx context.Context, cfg config.App, redis *store.Redis) (sessionBackend, error) {
	switch cfg.SessionBackend {
	case "redis":
		return sessionBackend{sessions: store.NewRedisSessions(redis, ""), health: redis}, nil
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return sessionBackend{}, err
		}
		s, err := store.NewSQLSessions(ctx, db.Client, store.Postgres)
		if err != nil {
			_ = db.Close()
			return sessionBackend{}, err
		}
		return sessionBackend{sessions: s, health: s, closer: db, purger: s}, nil
	case "sqlite":
		db, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return sessionBackend{}, err
		}
		s, err := store.NewSQLSessions(ctx, db.Client, store.SQLite)
		if err != nil {
			_ = db.Close()
			return sessionBackend{}, err
		}
		return sessionBackend{sessions: s, health: s, closer: db, purger: s}, nil
	default:
		m := auth.NewMemorySessions()
		return sessionBackend{sessions: m, health: m}, nil
	}
}

func run(cfg config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redis *store.Redis
	if cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis" {
		redis = store.NewRedis(cfg.RedisAddr)
		defer redis.Close()
		if !redis.Healthy(ctx) {
			log.Warn("redis not reachable", slog.String("addr", cfg.RedisAddr))
		}
	}

	backend, err := openSessions(ctx, cfg, redis)
	if err != nil {
		return fmt.Errorf("open %s sessions: %w", cfg.SessionBackend, err)
	}
	if backend.closer != nil {
		defer backend.closer.Close()
	}
	if backend.purger != nil {
		go purgeSessions(ctx, backend.purger, log)
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case "redis":
		q = queue.NewRedisQueue(redis.Client, queue.DefaultKey)
	default:
		mem := queue.NewInMemory(64)
		q = mem
		// no worker can reach an in-process queue, so drain it here
		go func() {
			if err := notify.Drain(ctx, mem, notify.Log{Logger: log.With(slog.String("component", "notifications"))}); err != nil {
				log.Error("notification drain stopped", slog.Any("error", err))
			}
		}()
	}

	m := metrics.NewDefault()
	roster := attendance.NewStore(attendance.WithNotifier(notify.Queue{Q: q, Logger: log}))
	if cfg.SeedDemo {
		roster.Restore(attendance.DemoSnapshot())
		log.Info("demo data loaded")
	}

	authn := &auth.Authenticator{
		Directory: auth.NewDemoDirectory(),
		Sessions:  backend.sessions,
		Issuer:    cfg.JWTIssuer,
		Key:       cfg.JWTSigningKey,
		TTL:       cfg.SessionTTL,
		Delay:     cfg.LoginDelay,
	}

	h := httpapi.New(roster, authn, m, log)
	h.AddHealthCheck("sessions", backend.health)
	if redis != nil && cfg.SessionBackend != "redis" {
		h.AddHealthCheck("redis", redis)
	}

	r := gin.New()
	// only listed proxies may set the client IP the rate limiter keys on
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLog(log, m.HTTPDuration, "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, m.RateLimited).GinMiddleware())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", srv.Addr), slog.String("sessions", cfg.SessionBackend), slog.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", slog.Any("error", err))
	}
	log.Info("server exited")
	return nil
}

func purgeSessions(ctx context.Context, s *store.SQLSessions, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purge(ctx)
			if err != nil {
				log.Warn("session purge failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions purged", slog.Int64("count", n))
			}
		}
	}
}
