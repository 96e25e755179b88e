package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/netbind/pkg/events"
)

// EventRecorder turns binder events into counters. Register it with a
// prometheus registry and feed it from the event bus.
type EventRecorder struct {
	attempts *prometheus.CounterVec
	releases *prometheus.CounterVec
	lost     prometheus.Counter
	duration *prometheus.HistogramVec
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netbind_bind_attempts_total",
			Help: "Bind attempts by outcome",
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netbind_releases_total",
			Help: "Bound networks released, by reason",
		}, []string{"reason"}),
		lost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netbind_network_lost_total",
			Help: "Bound networks that disappeared while bound",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netbind_bind_duration_seconds",
			Help:    "Time from bind request to outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
	}
}

func (r *EventRecorder) Describe(ch chan<- *prometheus.Desc) {
	r.attempts.Describe(ch)
	r.releases.Describe(ch)
	r.lost.Describe(ch)
	r.duration.Describe(ch)
}

func (r *EventRecorder) Collect(ch chan<- prometheus.Metric) {
	r.attempts.Collect(ch)
	r.releases.Collect(ch)
	r.lost.Collect(ch)
	r.duration.Collect(ch)
}

func (r *EventRecorder) Handle(ev events.Event) {
	switch data := ev.Data.(type) {
	case *events.BindEvent:
		r.attempts.WithLabelValues(data.Outcome).Inc()
		r.duration.WithLabelValues(data.Outcome).Observe(data.Duration.Seconds())
	case *events.ReleaseEvent:
		r.releases.WithLabelValues(data.Reason).Inc()
		if ev.Type == events.TopicLost {
			r.lost.Inc()
		}
	}
}
