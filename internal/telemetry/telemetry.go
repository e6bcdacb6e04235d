// Package telemetry exposes Prometheus collectors for the crawler service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results recorded by ObserveFetch.
const (
	FetchOK             = "ok"
	FetchHTTPError      = "http_error"
	FetchTransportError = "transport_error"
)

// Company resolution methods recorded by ObserveResolution.
const (
	ResolutionExact   = "exact"
	ResolutionFuzzy   = "fuzzy"
	ResolutionCreated = "created"
	ResolutionMinimal = "minimal"
)

// Enrichment results recorded by ObserveEnrichment.
const (
	EnrichmentUpdated = "updated"
	EnrichmentSkipped = "skipped"
)

var (
	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_requests_total",
			Help: "Total page fetch attempts, labeled by result.",
		},
		[]string{"result"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by result.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"result"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_fetch_retries_total",
			Help: "Total retry attempts beyond the first fetch of an ID.",
		},
	)

	vacanciesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_vacancies_stored_total",
			Help: "Total vacancies parsed and persisted.",
		},
	)

	companyResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_company_resolutions_total",
			Help: "Company resolutions, labeled by method.",
		},
		[]string{"method"},
	)

	companiesEnrichedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_companies_enriched_total",
			Help: "Enrichment visits, labeled by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveFetch records one page fetch attempt.
func ObserveFetch(result string, duration time.Duration) {
	fetchRequestsTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		fetchDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveRetry records a retry attempt beyond the first fetch.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveVacancyStored records a persisted vacancy.
func ObserveVacancyStored() {
	vacanciesStoredTotal.Inc()
}

// ObserveResolution records how a company name was resolved.
func ObserveResolution(method string) {
	companyResolutionsTotal.WithLabelValues(method).Inc()
}

// ObserveEnrichment records the result of one enrichment visit.
func ObserveEnrichment(result string) {
	companiesEnrichedTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
