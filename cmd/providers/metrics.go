package providers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/authgw"
)

// NewGateMetrics registers the gateway decision counters on the
// process-wide Prometheus registry served at /metrics.
func NewGateMetrics() *authgw.Metrics {
	return authgw.NewMetrics(prometheus.DefaultRegisterer)
}
