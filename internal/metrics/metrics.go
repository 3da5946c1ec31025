// Package metrics exposes the widget's prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stravella/chatwidget/internal/chatapi"
	"github.com/stravella/chatwidget/internal/identity"
)

const namespace = "stravella_widget"

type Metrics struct {
	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	threadIDs        *prometheus.CounterVec
	sessions         prometheus.Gauge
}

// New creates the instruments and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Chat exchanges with the chatbot endpoint, by outcome.",
		}, []string{"outcome"}),
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Time from submit to reply or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		threadIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_ids_total",
			Help:      "Thread id resolutions, by origin.",
		}, []string{"origin"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live widget instances held by the preview server.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.exchanges, m.exchangeDuration, m.threadIDs, m.sessions)
	}
	return m
}

func (m *Metrics) ObserveExchange(kind chatapi.Kind, elapsed time.Duration) {
	m.exchanges.WithLabelValues(string(kind)).Inc()
	m.exchangeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveThreadID(origin identity.Origin) {
	m.threadIDs.WithLabelValues(string(origin)).Inc()
}

func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}
