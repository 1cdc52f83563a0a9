package offscreen

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for offscreen_paints_dropped_total.
const (
	dropPopup    = "popup"
	dropSize     = "size_mismatch"
	dropShort    = "short_data"
	dropOverflow = "buffer_overflow"
)

type metrics struct {
	registry *prometheus.Registry

	paints          prometheus.Counter
	paintsDropped   *prometheus.CounterVec
	framesPresented prometheus.Counter
	steps           prometheus.Counter
	sourceRequests  prometheus.Counter
	transfers       prometheus.Counter
	navigations     prometheus.Counter
	lastHTTPStatus  prometheus.Gauge
}

func newMetrics(sessionID string) *metrics {
	labels := prometheus.Labels{"session": sessionID}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "offscreen",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &metrics{
		registry:        prometheus.NewRegistry(),
		paints:          counter("paints_total", "Paint callbacks received from the engine."),
		framesPresented: counter("frames_presented_total", "Frames copied into the host buffer."),
		steps:           counter("steps_total", "Step calls that ran engine work."),
		sourceRequests:  counter("source_requests_total", "Document source requests issued."),
		transfers:       counter("transfers_total", "Values handed over by page scripts."),
		navigations:     counter("navigations_total", "Navigations started by the host."),
		paintsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "offscreen",
			Name:        "paints_dropped_total",
			Help:        "Paint callbacks discarded by the render surface.",
			ConstLabels: labels,
		}, []string{"reason"}),
		lastHTTPStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "offscreen",
			Name:        "last_http_status",
			Help:        "Status of the most recent main-frame load.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.paints, m.paintsDropped, m.framesPresented, m.steps,
		m.sourceRequests, m.transfers, m.navigations, m.lastHTTPStatus,
	)
	return m
}
