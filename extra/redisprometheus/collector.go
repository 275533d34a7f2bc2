package redisprometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-redis/singleconn"
)

// StatGetter provides a method to get connection statistics.
type StatGetter interface {
	PoolStats() *redis.PoolStats
}

// Collector collects statistics from a redis client.
// It implements the prometheus.Collector interface.
type Collector struct {
	getter      StatGetter
	acquireDesc *prometheus.Desc
	waitDesc    *prometheus.Desc
	timeoutDesc *prometheus.Desc
	lostDesc    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a new Collector based on the provided StatGetter.
// The given namespace and subsystem are used to build the fully qualified metric name,
// i.e. "{namespace}_{subsystem}_{metric}".
// The provided metrics are:
//   - conn_acquire_total
//   - conn_wait_total
//   - conn_timeout_total
//   - conn_lost_total
func NewCollector(namespace, subsystem string, getter StatGetter, constantLabels prometheus.Labels) *Collector {
	return &Collector{
		getter: getter,
		acquireDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "conn_acquire_total"),
			"Number of times the connection was requested",
			nil, constantLabels,
		),
		waitDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "conn_wait_total"),
			"Number of times a caller had to wait for the connection",
			nil, constantLabels,
		),
		timeoutDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "conn_timeout_total"),
			"Number of times a caller gave up waiting for the connection",
			nil, constantLabels,
		),
		lostDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "conn_lost_total"),
			"Number of times the connection was invalidated",
			nil, constantLabels,
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (s *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- s.acquireDesc
	descs <- s.waitDesc
	descs <- s.timeoutDesc
	descs <- s.lostDesc
}

// Collect implements the prometheus.Collector interface.
func (s *Collector) Collect(metrics chan<- prometheus.Metric) {
	stats := s.getter.PoolStats()
	metrics <- prometheus.MustNewConstMetric(
		s.acquireDesc,
		prometheus.CounterValue,
		float64(stats.Acquires),
	)
	metrics <- prometheus.MustNewConstMetric(
		s.waitDesc,
		prometheus.CounterValue,
		float64(stats.Waits),
	)
	metrics <- prometheus.MustNewConstMetric(
		s.timeoutDesc,
		prometheus.CounterValue,
		float64(stats.Timeouts),
	)
	metrics <- prometheus.MustNewConstMetric(
		s.lostDesc,
		prometheus.CounterValue,
		float64(stats.Lost),
	)
}
