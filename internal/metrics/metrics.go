package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed at /metrics
var Registry = prometheus.NewRegistry()

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gsnweb",
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the GSN service, by endpoint and HTTP status.",
	}, []string{"endpoint", "code"})

	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gsnweb",
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of requests sent to the GSN service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	sessionsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gsnweb",
		Name:      "sessions_purged_total",
		Help:      "Expired sessions removed by the scheduler.",
	})
)

func init() {
	Registry.MustRegister(
		upstreamRequests,
		upstreamDuration,
		sessionsPurged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveUpstream records one GSN call. A zero code means the request never got a response.
func ObserveUpstream(endpoint string, code int, d time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamRequests.WithLabelValues(endpoint, label).Inc()
	upstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AddSessionsPurged counts sessions removed by the cleanup job
func AddSessionsPurged(n int) {
	if n > 0 {
		sessionsPurged.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
