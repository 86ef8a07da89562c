package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chronicle/api/controllers"
	"github.com/angelmondragon/chronicle/api/middleware"
	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/logger"
)

// NewOpsRouter serves the health probes and the prometheus scrape endpoint
// for the background workers.
func NewOpsRouter(cfg *config.Config, logg *logger.Logger, gatherer prometheus.Gatherer, deps map[string]controllers.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.With(middleware.Logging(logg)).Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
