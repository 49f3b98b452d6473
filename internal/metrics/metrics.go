// Package metrics exposes Prometheus counters for the session and publisher.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/downtime"
	"github.com/eshaffer321/steamtotwitter-go/internal/session"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "steamtotwitter"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Publishes        *prometheus.CounterVec
	PublishAttempts  prometheus.Counter
	RequestDuration  prometheus.Histogram
	Reconnects       *prometheus.CounterVec
	DowntimeWindows  prometheus.Counter
	DowntimeNotices  *prometheus.CounterVec
	SessionState     *prometheus.GaugeVec
	StateTransitions *prometheus.CounterVec
}

// New registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Announcements handed to the publisher, by outcome.",
		}, []string{"result"}),
		PublishAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_attempts_total",
			Help:      "HTTP attempts made by the publisher, retries included.",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_request_duration_seconds",
			Help:      "Duration of publisher HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Scheduled reconnects, by reason.",
		}, []string{"reason"}),
		DowntimeWindows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downtime_windows_total",
			Help:      "Downtime windows opened.",
		}),
		DowntimeNotices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downtime_notices_total",
			Help:      "Downtime notices, by outcome.",
		}, []string{"result"}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions, by target state.",
		}, []string{"to"}),
	}

	m.registry.MustRegister(
		m.Publishes,
		m.PublishAttempts,
		m.RequestDuration,
		m.Reconnects,
		m.DowntimeWindows,
		m.DowntimeNotices,
		m.SessionState,
		m.StateTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range session.States() {
		m.SessionState.WithLabelValues(s.String()).Set(0)
	}
	m.SessionState.WithLabelValues(session.Disconnected.String()).Set(1)

	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePublish counts one routed announcement
func (m *Metrics) ObservePublish(err error) {
	m.Publishes.WithLabelValues(outcome(err)).Inc()
}

// HTTPHooks counts publisher attempts and their durations
func (m *Metrics) HTTPHooks() *types.Hooks {
	return &types.Hooks{
		OnRequest: func(context.Context, *http.Request) {
			m.PublishAttempts.Inc()
		},
		OnResponse: func(_ context.Context, _ *http.Response, d time.Duration) {
			m.RequestDuration.Observe(d.Seconds())
		},
	}
}

// SessionHooks feeds session events into the collectors. next, if set,
// runs after each one.
func (m *Metrics) SessionHooks(next session.Hooks) session.Hooks {
	return session.Hooks{
		OnStateChange: func(from, to session.State) {
			m.SessionState.WithLabelValues(from.String()).Set(0)
			m.SessionState.WithLabelValues(to.String()).Set(1)
			m.StateTransitions.WithLabelValues(to.String()).Inc()
			if next.OnStateChange != nil {
				next.OnStateChange(from, to)
			}
		},
		OnReconnect: func(reason string) {
			m.Reconnects.WithLabelValues(reason).Inc()
			if next.OnReconnect != nil {
				next.OnReconnect(reason)
			}
		},
		OnDowntimeOpened: func(since time.Time) {
			m.DowntimeWindows.Inc()
			if next.OnDowntimeOpened != nil {
				next.OnDowntimeOpened(since)
			}
		},
		OnDowntimeNotice: func(notice downtime.Notice, err error) {
			m.DowntimeNotices.WithLabelValues(outcome(err)).Inc()
			if next.OnDowntimeNotice != nil {
				next.OnDowntimeNotice(notice, err)
			}
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
