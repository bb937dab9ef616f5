// internal/app/features/metrics/routes.go
// Package metrics exposes the Prometheus scrape endpoint.
package metrics

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes serves gatherer in the Prometheus text format. It is mounted
// under /metrics.
func Routes(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Handle("/", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
