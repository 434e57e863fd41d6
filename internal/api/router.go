package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"medsched/internal/metrics"
)

type RouterConfig struct {
	Service SchedulingService
	DB      *bun.DB
	Redis   *redis.Client
	Log     *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.DB, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/doctors/{doctorID}/availability", availabilityHandler(cfg.Service))
	r.Post("/appointments", bookHandler(cfg.Service))
	r.Patch("/appointments/{id}", patchAppointmentHandler(cfg.Service))

	return r
}
