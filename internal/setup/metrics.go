package setup

import (
	"context"
	"net/http"

	"github.com/bornholm/parcel/internal/config"
	"github.com/bornholm/parcel/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var metricsRegistry = prometheus.NewRegistry()

var NewMetricsCollectorFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*metrics.Collector, error) {
	return metrics.NewCollector(metricsRegistry), nil
})

func NewMetricsHandler() http.Handler {
	return metrics.Handler(metricsRegistry)
}
