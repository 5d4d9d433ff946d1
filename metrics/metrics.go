package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stream metrics
	StreamConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduling_stream_connections",
			Help: "Open event stream connections by transport (sse, websocket)",
		},
		[]string{"transport"},
	)

	ActiveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduling_active_channels",
			Help: "Tenant channels currently listened on",
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduling_subscribers",
			Help: "Registered tenant channel subscribers",
		},
	)

	// Change event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_events_published_total",
			Help: "Change events published by type and result",
		},
		[]string{"type", "result"},
	)

	EventsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduling_events_delivered_total",
			Help: "Change events handed to stream subscribers",
		},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_events_dropped_total",
			Help: "Change events dropped before reaching a subscriber, by reason",
		},
		[]string{"reason"},
	)

	TransportReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduling_transport_reconnects_total",
			Help: "Pub/sub transport reconnects",
		},
	)

	// Push metrics
	PushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_push_deliveries_total",
			Help: "Push delivery attempts by result (sent, gone, failed)",
		},
		[]string{"result"},
	)

	PushSubscriptionsPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_push_subscriptions_pruned_total",
			Help: "Push endpoints removed by reason (gone, stale, unsubscribed)",
		},
		[]string{"reason"},
	)

	// Object store metrics
	PhotoDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_photo_deletes_total",
			Help: "Report photo object deletions by result",
		},
		[]string{"result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	DetachedTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_detached_task_duration_seconds",
			Help:    "Duration of fire-and-forget side effects by task",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(StreamConnections)
	prometheus.MustRegister(ActiveChannels)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDelivered)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(TransportReconnects)
	prometheus.MustRegister(PushDeliveries)
	prometheus.MustRegister(PushSubscriptionsPruned)
	prometheus.MustRegister(PhotoDeletes)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(DetachedTaskDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a histogram observation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on the given observer.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
