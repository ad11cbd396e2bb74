package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains token verification metrics.
type Metrics struct {
	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram
}

// NewMetrics creates new auth metrics registered with the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new auth metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "verifications_total",
				Help:      "Total number of token verifications",
			},
			[]string{"result", "reason"},
		),
		verificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "verification_duration_seconds",
				Help:      "Token verification duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	// Duplicate registration is safe to ignore: descriptors are identical.
	_ = registerer.Register(m.verificationsTotal)
	_ = registerer.Register(m.verificationDuration)

	return m
}

// RecordVerification records a verification outcome.
func (m *Metrics) RecordVerification(result, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result, reason).Inc()
	m.verificationDuration.Observe(duration.Seconds())
}
