package forward

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains upstream forwarding metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	requestDuration *prometheus.HistogramVec
	streamsOpened   prometheus.Counter
}

// NewMetrics creates new forward metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates new forward metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of upstream requests",
			},
			[]string{"method", "status"},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "connect_retries_total",
				Help:      "Total number of upstream connect retries",
			},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Upstream request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		streamsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "streams_opened_total",
				Help:      "Total number of upstream streams opened",
			},
		),
	}

	// Duplicate registration is safe to ignore: descriptors are identical.
	_ = registerer.Register(m.requestsTotal)
	_ = registerer.Register(m.retriesTotal)
	_ = registerer.Register(m.requestDuration)
	_ = registerer.Register(m.streamsOpened)

	return m
}

// RecordRequest records a completed upstream round trip.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRetry records a connect retry.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// RecordStreamOpened records an opened stream.
func (m *Metrics) RecordStreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpened.Inc()
}
