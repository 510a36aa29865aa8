package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bf_s2_tile_broker"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "path"})

	// Catalog metrics
	CatalogSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "searches_total",
		Help:      "Total catalog searches by backend and outcome",
	}, []string{"backend", "outcome"})

	CatalogSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "search_duration_seconds",
		Help:      "Duration of catalog searches, pagination included",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"backend"})

	CatalogRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "retries_total",
		Help:      "Total retried catalog requests",
	}, []string{"backend"})

	CatalogCoalescedSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "coalesced_searches_total",
		Help:      "Searches answered by sharing an identical in-flight search",
	}, []string{"backend"})

	// Pipeline metrics
	TilesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "tiles_resolved_total",
		Help:      "Total tiles resolved by mode",
	}, []string{"mode"})

	ArchivesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "archive",
		Name:      "created_total",
		Help:      "Total shapefile archives created by mode",
	}, []string{"mode"})

	ArchivesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "archive",
		Name:      "swept_total",
		Help:      "Total archives removed after their retention window",
	})

	ArchivesStored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "archive",
		Name:      "stored",
		Help:      "Archives currently kept for download",
	})
)

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latencies labelled by route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
