package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route pattern, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// DistanceLookups counts resolved distances by the tier that answered.
	DistanceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_lookups_total", Help: "Distance lookups by answering tier."},
		[]string{"source"},
	)
	// RoutingFallbacks counts pairs that fell back to geodesic distance after routing API failures.
	RoutingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routing_fallbacks_total", Help: "Routing API failures answered with geodesic distance."},
	)

	OverflowAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "overflow_assignments_total", Help: "Visits assigned over the capacity ceiling."},
	)
	UnresolvedDropoffs = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "unresolved_dropoffs_total", Help: "Visits whose drop-off clinic could not be matched."},
	)

	// PlanDuration records assignment run durations by outcome.
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Assignment run duration in seconds.", Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(DistanceLookups)
		Registry.MustRegister(RoutingFallbacks)
		Registry.MustRegister(OverflowAssignments)
		Registry.MustRegister(UnresolvedDropoffs)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
