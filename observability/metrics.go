package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_notify"

// Metrics groups every collector of the notify pipeline.
// A nil *Metrics is valid and records nothing, which keeps tests terse.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsReceived *prometheus.CounterVec
	ClassifyErrors        *prometheus.CounterVec
	NotificationsSkipped  prometheus.Counter
	EventsDelivered       *prometheus.CounterVec
	EventsDropped         *prometheus.CounterVec
	HandlesPruned         prometheus.Counter
	ActiveSessions        prometheus.Gauge
	ActiveUsers           prometheus.Gauge
	FeedConnects          prometheus.Counter
	SessionBacklog        prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NotificationsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Raw database notifications received, by channel.",
		}, []string{"channel"}),
		ClassifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classify_errors_total",
			Help:      "Notifications dropped because they could not be classified, by reason.",
		}, []string{"reason"}),
		NotificationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_skipped_total",
			Help:      "Notifications that concerned no user.",
		}),
		EventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events accepted by a session mailbox, by event name.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events a session mailbox refused, by reason.",
		}, []string{"reason"}),
		HandlesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handles_pruned_total",
			Help:      "Closed session handles removed by the dispatcher.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live streaming sessions.",
		}),
		ActiveUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Users with at least one live session.",
		}),
		FeedConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_connects_total",
			Help:      "Change feed connections opened by the ingest worker.",
		}),
		SessionBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_backlog_max_ratio",
			Help:      "Fill ratio of the fullest session mailbox at the last sample.",
		}),
	}
	m.registry.MustRegister(
		m.NotificationsReceived,
		m.ClassifyErrors,
		m.NotificationsSkipped,
		m.EventsDelivered,
		m.EventsDropped,
		m.HandlesPruned,
		m.ActiveSessions,
		m.ActiveUsers,
		m.FeedConnects,
		m.SessionBacklog,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Received(channel string) {
	if m == nil {
		return
	}
	m.NotificationsReceived.WithLabelValues(channel).Inc()
}

func (m *Metrics) ClassifyFailed(reason string) {
	if m == nil {
		return
	}
	m.ClassifyErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.NotificationsSkipped.Inc()
}

func (m *Metrics) Delivered(eventName string) {
	if m == nil {
		return
	}
	m.EventsDelivered.WithLabelValues(eventName).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Pruned() {
	if m == nil {
		return
	}
	m.HandlesPruned.Inc()
}

func (m *Metrics) Sessions(users, sessions int) {
	if m == nil {
		return
	}
	m.ActiveUsers.Set(float64(users))
	m.ActiveSessions.Set(float64(sessions))
}

func (m *Metrics) FeedOpened() {
	if m == nil {
		return
	}
	m.FeedConnects.Inc()
}

func (m *Metrics) Backlog(ratio float64) {
	if m == nil {
		return
	}
	m.SessionBacklog.Set(ratio)
}
