package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/netbind/pkg/binder"
)

func init() {
	Register("binder", func(logger *slog.Logger) (MetricHandler, error) {
		return newBinderMetricHandler(logger), nil
	})
}

type binderMetricHandler struct {
	logger *slog.Logger
	now    func() time.Time
	descs  map[string]*prometheus.Desc
}

func newBinderMetricHandler(logger *slog.Logger) *binderMetricHandler {
	return &binderMetricHandler{
		logger: logger,
		now:    time.Now,
		descs: map[string]*prometheus.Desc{
			"bound":       prometheus.NewDesc("netbind_bound", "Whether a network is bound as the route override (1) or not (0)", nil, nil),
			"pending":     prometheus.NewDesc("netbind_bind_pending", "Whether a bind request is waiting for the platform (1) or not (0)", nil, nil),
			"bound_since": prometheus.NewDesc("netbind_bound_seconds", "Seconds since the current network was bound", []string{"ssid"}, nil),
		},
	}
}

func (h *binderMetricHandler) Name() string {
	return "binder"
}

func (h *binderMetricHandler) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range h.descs {
		ch <- desc
	}
}

func (h *binderMetricHandler) Collect(src Source, ch chan<- prometheus.Metric) error {
	snap := src.Snapshot()

	pending := 0.0
	if snap.State == binder.StatePending {
		pending = 1
	}
	ch <- prometheus.MustNewConstMetric(h.descs["pending"], prometheus.GaugeValue, pending)

	if snap.Bound == nil {
		ch <- prometheus.MustNewConstMetric(h.descs["bound"], prometheus.GaugeValue, 0)
		return nil
	}

	ch <- prometheus.MustNewConstMetric(h.descs["bound"], prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(h.descs["bound_since"], prometheus.GaugeValue,
		h.now().Sub(snap.Bound.BoundAt).Seconds(), snap.Bound.Identifier)
	return nil
}
