package clubsite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// siteMetrics holds the collectors of one App. Each App gets its own registry
// so several apps (and tests) can coexist in one process.
type siteMetrics struct {
	registry         *prometheus.Registry
	dispatchMessages *prometheus.CounterVec
	mirrorFailures   *prometheus.CounterVec
	previewRenders   *prometheus.CounterVec
}

func newSiteMetrics() *siteMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &siteMetrics{
		registry: reg,
		dispatchMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clubsite",
				Name:      "dispatch_messages_total",
				Help:      "Bot messages attempted by the dispatch endpoints, labeled by notification type and status.",
			},
			[]string{"type", "status"},
		),
		mirrorFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clubsite",
				Name:      "dispatch_mirror_failures_total",
				Help:      "In-app notification rows that failed to insert after the bot message was sent.",
			},
			[]string{"type"},
		),
		previewRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clubsite",
				Name:      "preview_renders_total",
				Help:      "Social-preview responses, labeled by result (rendered, cached, not_found, error).",
			},
			[]string{"result"},
		),
	}
}

func (m *siteMetrics) messageSent(kind string) {
	if m != nil {
		m.dispatchMessages.WithLabelValues(kind, "sent").Inc()
	}
}

func (m *siteMetrics) messageFailed(kind string) {
	if m != nil {
		m.dispatchMessages.WithLabelValues(kind, "failed").Inc()
	}
}

func (m *siteMetrics) mirrorFailed(kind string) {
	if m != nil {
		m.mirrorFailures.WithLabelValues(kind).Inc()
	}
}

func (m *siteMetrics) preview(result string) {
	if m != nil {
		m.previewRenders.WithLabelValues(result).Inc()
	}
}
