package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"respgate/internal/auth"
	"respgate/internal/handlers"
	"respgate/internal/metrics"
	"respgate/internal/middleware"
)

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, responsesHandler *handlers.ResponsesHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())             // panic recovery
	r.Use(middleware.MaxBodySize(512 * 1024)) // 512 KB max body
	r.Use(auth.Middleware)                    // caller identity from gateway headers

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/responses", func(r chi.Router) {
			// Create may stream for minutes; no request timeout here.
			r.Post("/", responsesHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(15 * time.Second))
				r.Get("/{id}", responsesHandler.Get)
				r.Post("/{id}/cancel", responsesHandler.Cancel)
				r.Delete("/{id}", responsesHandler.Delete)
			})
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
