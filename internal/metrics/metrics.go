package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: response identifiers rewritten to opaque tokens on the
	// way out.
	TaggedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "respsec_tagged_total",
			Help: "Total number of response identifiers tagged.",
		},
	)

	// Counter: inbound requests rejected by the ownership check, by
	// mismatch scope (user | team).
	DeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respsec_denied_total",
			Help: "Total number of response id accesses denied.",
		},
		[]string{"scope"},
	)

	// Counter: fallback mapping cache hits during inbound resolution.
	MappingHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "respsec_mapping_hits_total",
			Help: "Total number of response id mapping cache hits.",
		},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		TaggedTotal,
		DeniedTotal,
		MappingHitsTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
