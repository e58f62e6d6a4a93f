// Package metrics exposes evaluator and HTTP activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
)

type Manager struct {
	// counters
	CounterFrames      *prometheus.CounterVec
	CounterRepetitions *prometheus.CounterVec
	CounterRequests    *prometheus.CounterVec

	// gauges
	GaugeActiveSessions *prometheus.GaugeVec

	// histograms
	HistFrameScore           *prometheus.HistogramVec
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("rehab", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of evaluated frames by exercise and feedback level",
	}, []string{"exercise", "level"})
	counterRepetitions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "repetitions",
		Help:      "The total number of counted repetitions",
	}, []string{"exercise"})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})

	gaugeActiveSessions := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Sessions started and not yet ended",
	}, []string{"exercise"})

	histFrameScore := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frame_score",
		Help:      "Distribution of per-frame scores, excluding frames that could not be evaluated",
		Buckets:   []float64{10, 25, 50, 60, 75, 82.5, 90, 95, 100},
	}, []string{"exercise"})
	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"route", "method"})

	return &Manager{
		CounterFrames:            counterFrames,
		CounterRepetitions:       counterRepetitions,
		CounterRequests:          counterRequests,
		GaugeActiveSessions:      gaugeActiveSessions,
		HistFrameScore:           histFrameScore,
		HistogramRequestDuration: histogramRequestDuration,
	}
}

// ObserveFrame records one evaluated frame.
func (m *Manager) ObserveFrame(kind exercise.Kind, level feedback.Level, score float64) {
	m.CounterFrames.WithLabelValues(string(kind), level.String()).Inc()
	if level != feedback.Error {
		m.HistFrameScore.WithLabelValues(string(kind)).Observe(score)
	}
}

func (m *Manager) ObserveRepetition(kind exercise.Kind) {
	m.CounterRepetitions.WithLabelValues(string(kind)).Inc()
}

func (m *Manager) SessionStarted(kind exercise.Kind) {
	m.GaugeActiveSessions.WithLabelValues(string(kind)).Inc()
}

func (m *Manager) SessionEnded(kind exercise.Kind) {
	m.GaugeActiveSessions.WithLabelValues(string(kind)).Dec()
}
