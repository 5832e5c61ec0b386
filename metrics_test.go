package clubsite

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSiteMetricsCounters(t *testing.T) {
	m := newSiteMetrics()
	m.messageSent(NotificationEvent)
	m.messageSent(NotificationEvent)
	m.messageFailed(NotificationEvent)
	m.mirrorFailed(NotificationRole)
	m.preview("cached")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchMessages.WithLabelValues(NotificationEvent, "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchMessages.WithLabelValues(NotificationEvent, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mirrorFailures.WithLabelValues(NotificationRole)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.previewRenders.WithLabelValues("cached")))
}

func TestSiteMetricsNilIsSafe(t *testing.T) {
	var m *siteMetrics
	assert.NotPanics(t, func() {
		m.messageSent(NotificationMatch)
		m.messageFailed(NotificationMatch)
		m.mirrorFailed(NotificationMatch)
		m.preview("rendered")
	})
}

func TestSiteMetricsRegistriesAreIndependent(t *testing.T) {
	a, b := newSiteMetrics(), newSiteMetrics()
	a.preview("rendered")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.previewRenders.WithLabelValues("rendered")))
}
