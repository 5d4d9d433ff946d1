package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	assert.GreaterOrEqual(t, timer.Duration(), 10*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(PushDeliveries.WithLabelValues("gone"))
	PushDeliveries.WithLabelValues("gone").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PushDeliveries.WithLabelValues("gone")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	EventsDelivered.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "scheduling_events_delivered_total"))
}
