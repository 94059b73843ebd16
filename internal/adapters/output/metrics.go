package output

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// PrometheusMetrics exposes analysis counters on its own registry so
// several instances (tests, one per server) never collide.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	rowsProcessed      *prometheus.CounterVec
	threatsDetected    *prometheus.CounterVec
	threatsByLevel     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	analyses           *prometheus.CounterVec
	memoryUsage        prometheus.GaugeFunc
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "fwradar"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &PrometheusMetrics{registry: reg}

	m.rowsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_processed_total",
		Help:      "Total number of log rows ingested by result",
	}, []string{"result"})

	m.threatsDetected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threats_detected_total",
		Help:      "Total number of threat records by type",
	}, []string{"type"})

	m.threatsByLevel = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threats_by_level_total",
		Help:      "Total threat records by severity level",
	}, []string{"level"})

	m.evaluationDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent evaluating all rules over one log table",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	m.analyses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Total analysis passes by outcome",
	}, []string{"outcome"})

	m.memoryUsage = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current heap allocation in bytes",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Alloc)
	})

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncrementRowsByResult implements ports.ProcessingObserver.
func (m *PrometheusMetrics) IncrementRowsByResult(result string, n int) {
	if n <= 0 {
		return
	}
	m.rowsProcessed.WithLabelValues(result).Add(float64(n))
}

// ObserveEvaluation implements ports.ProcessingObserver.
func (m *PrometheusMetrics) ObserveEvaluation(d time.Duration) {
	m.evaluationDuration.Observe(d.Seconds())
}

// RecordAnalysis counts one finished analysis pass.
func (m *PrometheusMetrics) RecordAnalysis(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.analyses.WithLabelValues(outcome).Inc()
}

// OnThreat implements ports.ThreatSubscriber.
func (m *PrometheusMetrics) OnThreat(threat domain.ThreatRecord) {
	m.threatsDetected.WithLabelValues(string(threat.Type)).Inc()
	m.threatsByLevel.WithLabelValues(string(threat.Level)).Inc()
}
