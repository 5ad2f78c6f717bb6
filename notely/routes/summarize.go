package routes

import (
	"notely/notely/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SummarizeRoutes needs no session, matching the public summarize endpoint.
func SummarizeRoutes(ctrl *controllers.SummarizeController) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(requestTimeout))
	r.Post("/", ctrl.Summarize)
	return r
}
