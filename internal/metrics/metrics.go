// Package metrics holds the Prometheus collectors for Warden.
// All methods are safe to call on a nil *Metrics so components can run
// without instrumentation in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultExhausted = "exhausted"
	ResultCanceled  = "canceled"
	ResultError     = "error"
)

// Metrics groups every collector the core exports.
type Metrics struct {
	PoolAcquisitions *prometheus.CounterVec
	PoolWait         prometheus.Histogram
	PoolInUse        prometheus.Gauge
	PoolWaiting      prometheus.Gauge

	HashOperations *prometheus.CounterVec
	HashDuration   *prometheus.HistogramVec

	Authentications *prometheus.CounterVec
	Authorizations  *prometheus.CounterVec

	RepositoryOperations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PoolAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "pool",
			Name:      "acquisitions_total",
			Help:      "Connection checkouts by result.",
		}, []string{"result"}),
		PoolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "warden",
			Subsystem: "pool",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a free connection.",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "pool",
			Name:      "in_use",
			Help:      "Connections currently checked out.",
		}),
		PoolWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "pool",
			Name:      "waiting",
			Help:      "Callers queued for a connection.",
		}),
		HashOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "hasher",
			Name:      "operations_total",
			Help:      "Hash and verify operations by result.",
		}, []string{"operation", "result"}),
		HashDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warden",
			Subsystem: "hasher",
			Name:      "duration_seconds",
			Help:      "Hash and verify latency.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		Authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "authentications_total",
			Help:      "Authentication decisions by result.",
		}, []string{"result"}),
		Authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "authorizations_total",
			Help:      "Authorization decisions by check and result.",
		}, []string{"check", "result"}),
		RepositoryOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "User repository operations by result.",
		}, []string{"operation", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PoolAcquisitions,
			m.PoolWait,
			m.PoolInUse,
			m.PoolWaiting,
			m.HashOperations,
			m.HashDuration,
			m.Authentications,
			m.Authorizations,
			m.RepositoryOperations,
		)
	}

	return m
}

// ObserveAcquire records one pool checkout attempt.
func (m *Metrics) ObserveAcquire(result string, wait time.Duration) {
	if m == nil {
		return
	}
	m.PoolAcquisitions.WithLabelValues(result).Inc()
	m.PoolWait.Observe(wait.Seconds())
}

// SetPoolGauges publishes the current pool occupancy.
func (m *Metrics) SetPoolGauges(inUse, waiting int64) {
	if m == nil {
		return
	}
	m.PoolInUse.Set(float64(inUse))
	m.PoolWaiting.Set(float64(waiting))
}

// ObserveHash records one hasher operation ("hash" or "verify").
func (m *Metrics) ObserveHash(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.HashOperations.WithLabelValues(operation, result).Inc()
	m.HashDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveAuthentication records one login decision.
func (m *Metrics) ObserveAuthentication(result string) {
	if m == nil {
		return
	}
	m.Authentications.WithLabelValues(result).Inc()
}

// ObserveAuthorization records one authorization decision.
func (m *Metrics) ObserveAuthorization(check string, allowed bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !allowed {
		result = ResultFailure
	}
	m.Authorizations.WithLabelValues(check, result).Inc()
}

// ObserveRepository records one repository operation.
func (m *Metrics) ObserveRepository(operation string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.RepositoryOperations.WithLabelValues(operation, result).Inc()
}
