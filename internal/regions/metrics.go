package regions

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts registry traffic per provider. A nil *Metrics records nothing.
type Metrics struct {
	queries  *prometheus.CounterVec
	panics   *prometheus.CounterVec
	decodes  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regions",
			Name:      "provider_queries_total",
			Help:      "Queries dispatched to a region provider.",
		}, []string{"provider", "op"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regions",
			Name:      "provider_panics_total",
			Help:      "Provider calls that panicked and were treated as not found.",
		}, []string{"provider", "op"}),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regions",
			Name:      "decoded_total",
			Help:      "Region references restored, by source (record or query).",
		}, []string{"kind", "source"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regions",
			Name:      "decode_failures_total",
			Help:      "Region references that could not be restored, by source (record or query).",
		}, []string{"kind", "source"}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.panics, m.decodes, m.failures)
	}
	return m
}

func (m *Metrics) query(provider, op string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) panicked(provider, op string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) decoded(kind, source string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failures.WithLabelValues(kind, source).Inc()
		return
	}
	m.decodes.WithLabelValues(kind, source).Inc()
}
