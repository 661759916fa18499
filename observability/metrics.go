package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	vaultdMetricsOnce sync.Once
	vaultdRegistry    *VaultdMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total HTTP module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total HTTP module errors segmented by module, method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vault",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// VaultdMetrics wraps collectors tracking vault controller health.
type VaultdMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
	pauseEngaged prometheus.Gauge
	auditRecords prometheus.Counter
}

// Vaultd exposes the metrics registry for vaultd.
func Vaultd() *VaultdMetrics {
	vaultdMetricsOnce.Do(func() {
		vaultdRegistry = &VaultdMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "vaultd",
				Name:      "operations_total",
				Help:      "Count of vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vault",
				Subsystem: "vaultd",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "vaultd",
				Name:      "rejections_total",
				Help:      "Count of policy rejections segmented by operation and error code.",
			}, []string{"operation", "code"}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "vault",
				Subsystem: "vaultd",
				Name:      "pause_engaged",
				Help:      "Indicates whether the vault module pause guard is active (1) or not (0).",
			}),
			auditRecords: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vault",
				Subsystem: "vaultd",
				Name:      "audit_records_total",
				Help:      "Count of audit records appended to the hash chain.",
			}),
		}
		prometheus.MustRegister(
			vaultdRegistry.operations,
			vaultdRegistry.latency,
			vaultdRegistry.rejections,
			vaultdRegistry.pauseEngaged,
			vaultdRegistry.auditRecords,
		)
	})
	return vaultdRegistry
}

// ObserveOperation records one completed operation. code is the stable policy
// error code, empty on success.
func (m *VaultdMetrics) ObserveOperation(operation string, d time.Duration, code string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if code != "" {
		outcome = "rejected"
		m.rejections.WithLabelValues(op, code).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

// SetPaused toggles the pause gauge.
func (m *VaultdMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

// RecordAudit increments the audit record counter.
func (m *VaultdMetrics) RecordAudit() {
	if m == nil {
		return
	}
	m.auditRecords.Inc()
}
