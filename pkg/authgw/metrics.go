package authgw

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments gateway decisions.
type Metrics struct {
	Decisions   *prometheus.CounterVec
	RateLimited *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics builds and registers the gateway metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vendeuonline",
			Subsystem: "authgw",
			Name:      "decisions_total",
			Help:      "Authentication decisions by outcome.",
		}, []string{"outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vendeuonline",
			Subsystem: "authgw",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by route class.",
		}, []string{"class"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vendeuonline",
			Subsystem: "authgw",
			Name:      "identity_cache_hits_total",
			Help:      "Identity cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vendeuonline",
			Subsystem: "authgw",
			Name:      "identity_cache_misses_total",
			Help:      "Identity cache misses.",
		}),
	}
	reg.MustRegister(m.Decisions, m.RateLimited, m.CacheHits, m.CacheMisses)
	return m
}
