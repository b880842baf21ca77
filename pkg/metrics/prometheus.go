package metrics

import (
	"CryptoAssist/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	iterations     *prometheus.CounterVec
	iterationTime  prometheus.Histogram
	scanErrors     *prometheus.CounterVec
	signals        *prometheus.CounterVec
	activeSignals  prometheus.Gauge
	breakerState   *prometheus.GaugeVec
	notifications  *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoassist_iterations_total",
				Help: "Session loop iterations by result",
			},
			[]string{"result"},
		),
		iterationTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cryptoassist_iteration_duration_seconds",
				Help:    "Duration of one session loop iteration",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		scanErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoassist_scan_errors_total",
				Help: "Symbols whose scan failed",
			},
			[]string{"symbol"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoassist_signals_total",
				Help: "Signal pipeline outcomes",
			},
			[]string{"outcome"},
		),
		activeSignals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptoassist_active_signals",
				Help: "Signals currently retained by the session",
			},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptoassist_breaker_state",
				Help: "1 for the current circuit breaker state, 0 otherwise",
			},
			[]string{"state"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoassist_notifications_total",
				Help: "Notification attempts by result",
			},
			[]string{"result"},
		),
		backendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptoassist_backend_call_duration_seconds",
				Help:    "Duration of reasoning backend calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordIteration records one finished loop iteration.
func (r *Recorder) RecordIteration(result string, seconds float64) {
	r.iterations.WithLabelValues(result).Inc()
	r.iterationTime.Observe(seconds)
}

func (r *Recorder) RecordScanError(symbol string) {
	r.scanErrors.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordSignal(outcome string) {
	r.signals.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

// SetBreakerState flips the gauge of the given state to 1 and the others to 0.
func (r *Recorder) SetBreakerState(state models.BreakerState) {
	for _, s := range []models.BreakerState{models.BreakerClosed, models.BreakerOpen, models.BreakerHalfOpen} {
		v := 0.0
		if s == state {
			v = 1
		}
		r.breakerState.WithLabelValues(string(s)).Set(v)
	}
}

func (r *Recorder) RecordNotification(result string) {
	r.notifications.WithLabelValues(result).Inc()
}

// RecordBackendCall records reasoning backend latency in seconds.
func (r *Recorder) RecordBackendCall(op string, seconds float64) {
	r.backendLatency.WithLabelValues(op).Observe(seconds)
}
