package routes

import (
	"net/http"

	"notely/notely/config"
	"notely/notely/controllers"
	"notely/notely/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controllers is everything NewRouter mounts.
type Controllers struct {
	Notes     *controllers.NotesController
	Events    *controllers.EventHub
	Summarize *controllers.SummarizeController
	Health    *controllers.HealthController
}

func NewRouter(ctrls Controllers, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Mount("/health", HealthRoutes(ctrls.Health))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/notes", NotesRoutes(ctrls.Notes, ctrls.Events, cfg))
	r.Mount("/api/summarize", SummarizeRoutes(ctrls.Summarize))
	return r
}
