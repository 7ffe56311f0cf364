package producer

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Producer Batcher's counters, optional like router.Metrics.
type Metrics struct {
	FlushTotal   *prometheus.CounterVec
	BufferedGauge *prometheus.GaugeVec
}

// NewMetrics registers the Producer Batcher's instruments against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_producer_flush_total",
			Help: "Number of partition-bucket flushes attempted by the producer batcher, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		BufferedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mq_producer_buffered_records",
			Help: "Records currently buffered per (topic, partition) bucket awaiting flush.",
		}, []string{"topic", "partition"}),
	}
	if reg != nil {
		reg.MustRegister(m.FlushTotal, m.BufferedGauge)
	}
	return m
}
