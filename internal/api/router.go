package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints sit outside the actor requirement.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/practitioners/{id}", func(r chi.Router) {
			r.Get("/slots", listSlotsHandler(cfg.Service))
			r.Post("/calendar", createCalendarHandler(cfg.Service))
			r.Get("/calendar", getCalendarHandler(cfg.Service))
			r.Put("/calendar/windows/{weekday}", setWindowHandler(cfg.Service))
			r.Put("/calendar/vacation", setVacationHandler(cfg.Service))
			r.Put("/calendar/exceptions/{date}", setExceptionHandler(cfg.Service))
			r.Delete("/calendar/exceptions/{date}", clearExceptionHandler(cfg.Service))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Service))
			r.Get("/", listAppointmentsHandler(cfg.Service))
			r.Get("/{id}", getAppointmentHandler(cfg.Service))
			r.Post("/{id}/transition", transitionHandler(cfg.Service))
		})
	})

	return r
}
