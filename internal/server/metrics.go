package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_processed_total",
		Help: "Total number of frames classified",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_dropped_total",
		Help: "Frames rejected because the ingest queue was full",
	})

	statesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focus_state_emitted_total",
		Help: "Emitted focus states by state",
	}, []string{"state"})

	confidenceObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "focus_confidence",
		Help:    "Confidence of emitted focus states",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of open study sessions",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_queue_depth",
		Help: "Frames waiting for classification",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		// The stream route hijacks the connection, so it is counted but not wrapped.
		if endpoint == "/sessions/{id}/stream" {
			httpRequestsTotal.WithLabelValues(r.Method, endpoint, "101").Inc()
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
