package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/lookalike/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	matchHandler := handlers.NewMatchHandler(s.deps.Resolver, s.deps.Logger)
	quotaHandler := handlers.NewQuotaHandler(s.deps.Quota, s.deps.Logger)
	healthHandler := handlers.NewHealthHandler(s.deps.Checks)

	if s.deps.Gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/quota", quotaHandler.Get)
		r.Post("/match", matchHandler.Match)
	})
}
