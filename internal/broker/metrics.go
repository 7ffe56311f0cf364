package broker

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Broker Service's Prometheus instruments. Not named by the
// distilled spec and excluded by no Non-goal; wired in as ambient
// observability per SPEC_FULL.md §2.
type Metrics struct {
	ProduceTotal      *prometheus.CounterVec
	ProduceLatency    *prometheus.HistogramVec
	ConsumeTotal      *prometheus.CounterVec
	ConsumeLatency    *prometheus.HistogramVec
	AppendedRecords   *prometheus.CounterVec
	WrongBrokerTotal  prometheus.Counter
}

// NewMetrics registers broker instruments against reg. Passing a fresh
// registry (rather than prometheus.DefaultRegisterer) keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProduceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "produce_requests_total",
			Help:      "Total ProduceMessages RPCs by outcome.",
		}, []string{"outcome"}),
		ProduceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "produce_latency_seconds",
			Help:      "ProduceMessages RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		ConsumeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "consume_requests_total",
			Help:      "Total ConsumeMessages RPCs by outcome.",
		}, []string{"outcome"}),
		ConsumeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "consume_latency_seconds",
			Help:      "ConsumeMessages RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		AppendedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "appended_records_total",
			Help:      "Records appended per (topic, partition).",
		}, []string{"topic", "partition"}),
		WrongBrokerTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deps",
			Subsystem: "broker",
			Name:      "wrong_broker_redirects_total",
			Help:      "Produce groups rejected with a WrongBroker redirect.",
		}),
	}
	reg.MustRegister(m.ProduceTotal, m.ProduceLatency, m.ConsumeTotal, m.ConsumeLatency, m.AppendedRecords, m.WrongBrokerTotal)
	return m
}
