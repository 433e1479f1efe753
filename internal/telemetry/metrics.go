package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FramesCaptured counts frames written into the capture buffer
	FramesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "frames_captured_total",
			Help:      "Total number of frames captured by the sniffer",
		},
		[]string{"interface"},
	)

	// CaptureBytes counts raw bytes written into the capture buffer
	CaptureBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "capture_bytes_total",
			Help:      "Total number of captured frame bytes",
		},
		[]string{"interface"},
	)

	// FramesSkipped counts buffered frames the executor read but did not match
	FramesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "frames_skipped_total",
			Help:      "Total number of captured frames skipped while waiting for a response",
		},
		[]string{"reason"},
	)

	// InjectionsTotal counts total injection attempts
	InjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "injection_total",
			Help:      "Total number of packet injection attempts",
		},
		[]string{"interface", "type"},
	)

	// InjectionErrors counts failed injection attempts
	InjectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "injection_errors_total",
			Help:      "Total number of failed packet injection attempts",
		},
		[]string{"interface", "type"},
	)

	// QueriesTotal counts queries by symbol
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "queries_total",
			Help:      "Total number of queries executed",
		},
		[]string{"query"},
	)

	// ResponsesTotal counts abstracted responses by symbol
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "responses_total",
			Help:      "Total number of responses returned to the learner",
		},
		[]string{"response"},
	)

	// QueryDuration observes the time from injection to response or timeout
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eapsul",
			Name:      "query_duration_seconds",
			Help:      "Time spent waiting for the response to a query",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query"},
	)

	// ResponseTimeout is the current response timeout
	ResponseTimeout = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "eapsul",
			Name:      "response_timeout_seconds",
			Help:      "Current response timeout",
		},
	)

	// DiscoveryAttempts counts channel dwells spent looking for the target network
	DiscoveryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eapsul",
			Name:      "discovery_attempts_total",
			Help:      "Total number of channel dwells during network discovery",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		prometheus.DefaultRegisterer.Register(FramesCaptured)
		prometheus.DefaultRegisterer.Register(CaptureBytes)
		prometheus.DefaultRegisterer.Register(FramesSkipped)
		prometheus.DefaultRegisterer.Register(InjectionsTotal)
		prometheus.DefaultRegisterer.Register(InjectionErrors)
		prometheus.DefaultRegisterer.Register(QueriesTotal)
		prometheus.DefaultRegisterer.Register(ResponsesTotal)
		prometheus.DefaultRegisterer.Register(QueryDuration)
		prometheus.DefaultRegisterer.Register(ResponseTimeout)
		prometheus.DefaultRegisterer.Register(DiscoveryAttempts)
	})
}
