// Package metrics exposes validation and HTTP metrics in the Prometheus
// format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/joyfill/joydoc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a Prometheus registry and the JoyDoc metric vectors. It
// implements joydoc.Observer, so a Validator can report to it directly.
type Recorder struct {
	enabled  bool
	registry *prometheus.Registry

	validations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	violations  *prometheus.CounterVec
	warnings    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reportsSaved *prometheus.CounterVec
}

var _ joydoc.Observer = (*Recorder)(nil)

// NewRecorder registers the metric vectors on registry, or on a fresh
// registry when nil. cfg.Labels are attached to every series.
func NewRecorder(cfg joydoc.MetricsConfig, registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "joydoc"
	}
	constLabels := prometheus.Labels(cfg.Labels)

	r := &Recorder{
		enabled:  cfg.Enabled,
		registry: registry,
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "validation",
			Name:        "total",
			Help:        "Validations performed, by scope and outcome.",
			ConstLabels: constLabels,
		}, []string{"scope", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "validation",
			Name:        "duration_seconds",
			Help:        "Time spent validating, by scope.",
			ConstLabels: constLabels,
			// Documents validate in microseconds to a few hundred milliseconds.
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"scope"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "validation",
			Name:        "violations_total",
			Help:        "Violations found, by scope and kind.",
			ConstLabels: constLabels,
		}, []string{"scope", "kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "validation",
			Name:        "warnings_total",
			Help:        "Advisory warnings, by scope.",
			ConstLabels: constLabels,
		}, []string{"scope"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "HTTP requests, by route and status code.",
			ConstLabels: constLabels,
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request latency, by route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route"}),
		reportsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "reports_saved_total",
			Help:        "Validation reports written to the store, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		r.validations, r.duration, r.violations, r.warnings,
		r.httpRequests, r.httpDuration, r.reportsSaved,
	)
	return r
}

// ObserveValidation records one validation.
func (r *Recorder) ObserveValidation(scope string, result *joydoc.ValidationResult, elapsed time.Duration) {
	if !r.enabled || result == nil {
		return
	}
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	r.validations.WithLabelValues(scope, outcome).Inc()
	r.duration.WithLabelValues(scope).Observe(elapsed.Seconds())
	for kind, n := range countByKind(result.Violations) {
		r.violations.WithLabelValues(scope, string(kind)).Add(float64(n))
	}
	if len(result.Warnings) > 0 {
		r.warnings.WithLabelValues(scope).Add(float64(len(result.Warnings)))
	}
}

func countByKind(violations []joydoc.Violation) map[joydoc.ViolationKind]int {
	counts := make(map[joydoc.ViolationKind]int)
	for _, v := range violations {
		counts[v.Kind]++
	}
	return counts
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if !r.enabled {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveReportSaved counts a report write; err is the outcome of Save.
func (r *Recorder) ObserveReportSaved(err error) {
	if !r.enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.reportsSaved.WithLabelValues(outcome).Inc()
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
