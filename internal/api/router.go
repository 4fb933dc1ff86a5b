package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/config"
	"github.com/hackgods/trial-session-booking/internal/metrics"
	"github.com/hackgods/trial-session-booking/internal/session"
)

// SessionService is the part of session.Service the HTTP layer needs.
type SessionService interface {
	ListAvailableSessions(ctx context.Context, mentorID uuid.UUID) ([]session.Session, error)
	BookSession(ctx context.Context, req session.BookingRequest) (*session.Session, error)
	ConfirmSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
}

type RouterConfig struct {
	Service   SessionService
	Postgres  PingFunc
	Redis     PingFunc
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	RateLimit config.RateLimitConfig
	Location  *time.Location // default grouping zone for /availability
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Get("/mentors/{mentorID}/sessions", listSessionsHandler(cfg.Service))
	r.Get("/mentors/{mentorID}/availability", availabilityHandler(cfg.Service, cfg.Location, cfg.Logger))

	limiter := NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, cfg.Logger, cfg.Metrics)
	r.With(limiter.Middleware).Post("/sessions/book", bookSessionHandler(cfg.Service, cfg.Metrics))
	r.Post("/sessions/{id}/confirm", confirmSessionHandler(cfg.Service, cfg.Metrics))

	return r
}
