// Package prometheus provides Prometheus metrics for the chat engine's
// session routing layer.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "avatarchat"

// Status constants for metric labels.
const (
	// StatusSubmitted marks frames that reached the pipeline sink.
	StatusSubmitted = "submitted"
	// StatusDropped marks frames silently dropped at the transport boundary.
	StatusDropped = "dropped"
	// StatusError marks frames rejected with a hard contract breach.
	StatusError = "error"
)

var (
	// sessionsActive is a gauge of currently live sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently live sessions",
		},
	)

	// sessionsTotal is a counter of sessions by terminal status.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions started",
		},
		[]string{"status"}, // status: started, rejected
	)

	// framesIngestedTotal counts frames entering through session delegates.
	framesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_ingested_total",
			Help:      "Total frames ingested by session delegates",
		},
		[]string{"channel", "status"}, // status: submitted, dropped, error
	)

	// queueDepth is a gauge of pending items per delegate channel queue.
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delegate_queue_depth",
			Help:      "Pending items per session delegate channel queue",
		},
		[]string{"session", "channel"},
	)

	// handleDuration is a histogram of handler Handle call duration.
	handleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_handle_duration_seconds",
			Help:      "Duration of handler Handle calls in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"handler"},
	)

	// relaySelectionsTotal counts relay negotiation outcomes by provider.
	relaySelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_selections_total",
			Help:      "Relay provider negotiation outcomes",
		},
		[]string{"provider"}, // provider name or "none"
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		framesIngestedTotal,
		queueDepth,
		handleDuration,
		relaySelectionsTotal,
	}
)

// RecordSessionStart records a session entering the registry.
func RecordSessionStart() {
	sessionsActive.Inc()
	sessionsTotal.WithLabelValues("started").Inc()
}

// RecordSessionRejected records a session refused by the concurrency limit.
func RecordSessionRejected() {
	sessionsTotal.WithLabelValues("rejected").Inc()
}

// RecordSessionEnd records a session leaving the registry.
func RecordSessionEnd() {
	sessionsActive.Dec()
}

// RecordFrameIngested records the outcome of a delegate PutData call.
func RecordFrameIngested(channel, status string) {
	framesIngestedTotal.WithLabelValues(channel, status).Inc()
}

// SetQueueDepth records the pending item count of one delegate channel queue.
func SetQueueDepth(sessionID, channel string, depth int) {
	queueDepth.WithLabelValues(sessionID, channel).Set(float64(depth))
}

// DropQueueDepth removes the queue depth series of a torn-down session.
func DropQueueDepth(sessionID string) {
	queueDepth.DeletePartialMatch(prometheus.Labels{"session": sessionID})
}

// RecordHandleDuration records the duration of one handler Handle call.
func RecordHandleDuration(handlerName string, durationSeconds float64) {
	handleDuration.WithLabelValues(handlerName).Observe(durationSeconds)
}

// RecordRelaySelection records a relay negotiation outcome. Use "none" when
// no provider accepted the configuration.
func RecordRelaySelection(provider string) {
	relaySelectionsTotal.WithLabelValues(provider).Inc()
}
