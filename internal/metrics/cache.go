package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks persistence cache operations and reaper sweeps.
// A nil *CacheMetrics is valid and records nothing.
type CacheMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	reaperRuns        *prometheus.CounterVec
	reaperRemoved     *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

// NewCacheMetrics registers cache metrics with the collector.
func NewCacheMetrics(collector *Collector) *CacheMetrics {
	return &CacheMetrics{
		operationsTotal: collector.RegisterCounter(
			MetricCacheOperationsTotal,
			"Total cache operations by operation and outcome",
			[]string{LabelOperation, LabelOutcome},
		),
		operationDuration: collector.RegisterHistogram(
			MetricCacheOperationDuration,
			"Cache operation latency in seconds",
			[]string{LabelOperation},
			nil,
		),
		reaperRuns: collector.RegisterCounter(
			MetricReaperRunsTotal,
			"Total reaper sweeps by outcome",
			[]string{LabelOutcome},
		),
		reaperRemoved: collector.RegisterCounter(
			MetricReaperRemovedTotal,
			"Total expired records removed by tidy",
			nil,
		),
		httpRequests: collector.RegisterCounter(
			MetricHTTPRequestsTotal,
			"Total HTTP requests by method and status",
			[]string{LabelMethod, LabelStatus},
		),
	}
}

// ObserveOperation records one cache operation.
func (m *CacheMetrics) ObserveOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveTidy records one tidy sweep.
func (m *CacheMetrics) ObserveTidy(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reaperRuns.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.reaperRuns.WithLabelValues(OutcomeOK).Inc()
	m.reaperRemoved.WithLabelValues().Add(float64(removed))
}

// ObserveRequest records one HTTP request.
func (m *CacheMetrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
