package router

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the client-side counters the Router exposes. They are
// optional: New(..., nil) works, every call site nil-checks before use.
type Metrics struct {
	RefreshTotal *prometheus.CounterVec
}

// NewMetrics registers the Router's instruments against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_router_metadata_refresh_total",
			Help: "Number of successful metadata refreshes performed by the router, by topic.",
		}, []string{"topic"}),
	}
	if reg != nil {
		reg.MustRegister(m.RefreshTotal)
	}
	return m
}
