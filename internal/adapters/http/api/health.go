package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/povelc/portfolio/pkg/metrics"
)

// NewHealthHandler serves the custom registry in the Prometheus exposition format.
// A successful scrape doubles as the liveness signal.
func NewHealthHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
