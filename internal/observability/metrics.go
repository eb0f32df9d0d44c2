package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xferctl",
			Subsystem: "protocol",
			Name:      "frames_sent_total",
			Help:      "Request frames written to the server.",
		},
		[]string{"code"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xferctl",
			Subsystem: "protocol",
			Name:      "frames_received_total",
			Help:      "Response frames read from the server.",
		},
		[]string{"code"},
	)
	transferAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xferctl",
			Subsystem: "transfer",
			Name:      "attempts_total",
			Help:      "SEND_FILE attempts.",
		},
	)
	transferOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xferctl",
			Subsystem: "transfer",
			Name:      "outcomes_total",
			Help:      "Finished runs by outcome and entry flow.",
		},
		[]string{"outcome", "flow"},
	)
	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xferctl",
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "Run duration from connect to terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesSent, framesReceived, transferAttempts, transferOutcomes, transferDuration)
	})
}

func RecordFrameSent(code string) {
	RegisterMetrics()
	framesSent.WithLabelValues(code).Inc()
}

func RecordFrameReceived(code string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(code).Inc()
}

func RecordTransferAttempt() {
	RegisterMetrics()
	transferAttempts.Inc()
}

func RecordOutcome(outcome, flow string, duration time.Duration) {
	RegisterMetrics()
	transferOutcomes.WithLabelValues(outcome, flow).Inc()
	transferDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// WriteTextfile dumps the default registry in text exposition format, for a
// node_exporter textfile collector to pick up after the run.
func WriteTextfile(path string) error {
	RegisterMetrics()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("observability: write textfile %s: %w", path, err)
	}
	return nil
}
