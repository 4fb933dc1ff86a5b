package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/api"
	"github.com/hackgods/trial-session-booking/internal/config"
	"github.com/hackgods/trial-session-booking/internal/db"
	"github.com/hackgods/trial-session-booking/internal/logger"
	"github.com/hackgods/trial-session-booking/internal/metrics"
	redisclient "github.com/hackgods/trial-session-booking/internal/redis"
	"github.com/hackgods/trial-session-booking/internal/session"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("pending_ttl", cfg.PendingTTL),
		zap.Duration("lock_ttl", cfg.LockTTL),
		zap.String("display_tz", cfg.Booking.DisplayTimeZone))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg)
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

	loc, err := cfg.Booking.Location()
	if err != nil {
		lg.Fatal("display timezone", zap.Error(err))
	}

	repo := session.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSessionLocker(rdb, cfg.LockTTL)
	svc := session.NewService(repo, locker, cfg, lg.Named("session"))

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Postgres:  pgPool.Ping,
		Redis:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Logger:    lg.Named("http"),
		Metrics:   metrics.New(),
		RateLimit: cfg.RateLimit,
		Location:  loc,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		lg.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}

	lg.Info("api-server stopped")
}
