package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the availability service instruments. A nil *Metrics is a no-op.
type Metrics struct {
	computations *prometheus.CounterVec
	computeTime  *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	events       *prometheus.CounterVec
	outbox       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultbook",
			Subsystem: "availability",
			Name:      "computations_total",
			Help:      "Slot computations by operation and outcome",
		}, []string{"operation", "outcome"}),
		computeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultbook",
			Subsystem: "availability",
			Name:      "computation_seconds",
			Help:      "Time spent loading inputs and computing availability",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultbook",
			Subsystem: "slotcache",
			Name:      "lookups_total",
			Help:      "Slot cache lookups by result",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultbook",
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Consumed booking events by type and outcome",
		}, []string{"event_type", "outcome"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultbook",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox records handed to Kafka by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultbook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status",
		}, []string{"route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultbook",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.computations, m.computeTime, m.cacheLookups, m.events, m.outbox, m.httpRequests, m.httpLatency)
	return m
}

func (m *Metrics) ObserveComputation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(operation, outcome).Inc()
	m.computeTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObservePublished(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outbox.WithLabelValues(outcome).Add(float64(n))
}

// ObserveHTTP matches httpx.RouteRecorder. Routes are labelled by the mux
// pattern so path parameters do not explode cardinality.
func (m *Metrics) ObserveHTTP(r *http.Request, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}
