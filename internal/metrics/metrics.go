package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "referral"

// Metrics owns a private registry so tests and multiple servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	textTotal    *prometheus.CounterVec
	textDuration *prometheus.HistogramVec
	textPages    prometheus.Histogram
	fieldsTotal  *prometheus.CounterVec
	fieldsFound  prometheus.Histogram
	breakerState *prometheus.GaugeVec
	uploadBytes  prometheus.Histogram
	rateLimited  prometheus.Counter
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "requests_total",
				Help:        "Total HTTP requests processed.",
				ConstLabels: constLabels,
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "request_duration_seconds",
				Help:        "HTTP request duration in seconds.",
				Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
				ConstLabels: constLabels,
			},
			[]string{"method", "route"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: constLabels,
			},
		),
		textTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "text",
				Name:        "extractions_total",
				Help:        "Text extractions by method (pdf-text, pdf-ocr, image-ocr, unsupported, error).",
				ConstLabels: constLabels,
			},
			[]string{"method"},
		),
		textDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "text",
				Name:        "extraction_duration_seconds",
				Help:        "Text extraction duration in seconds.",
				Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
				ConstLabels: constLabels,
			},
			[]string{"method"},
		),
		textPages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "text",
				Name:        "pages",
				Help:        "Pages per extracted document.",
				Buckets:     []float64{1, 2, 3, 5, 8, 13, 21, 50},
				ConstLabels: constLabels,
			},
		),
		fieldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "fields",
				Name:        "extractions_total",
				Help:        "Field extractions by strategy and outcome (ok, fallback).",
				ConstLabels: constLabels,
			},
			[]string{"strategy", "outcome"},
		),
		fieldsFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "fields",
				Name:        "found",
				Help:        "Number of the eight referral fields found per document.",
				Buckets:     []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
				ConstLabels: constLabels,
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "llm",
				Name:        "breaker_state",
				Help:        "Circuit breaker state (0 closed, 1 half-open, 2 open).",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		uploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "upload_bytes",
				Help:        "Size of accepted uploads in bytes.",
				Buckets:     prometheus.ExponentialBuckets(16<<10, 4, 8),
				ConstLabels: constLabels,
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "rate_limited_total",
				Help:        "Requests rejected by the rate limiter.",
				ConstLabels: constLabels,
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal, m.requestDuration, m.requestInFlight,
		m.textTotal, m.textDuration, m.textPages,
		m.fieldsTotal, m.fieldsFound,
		m.breakerState, m.uploadBytes, m.rateLimited,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route pattern,
// so path parameters never explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveText(method string, pages int, d time.Duration) {
	m.textTotal.WithLabelValues(method).Inc()
	m.textDuration.WithLabelValues(method).Observe(d.Seconds())
	if pages > 0 {
		m.textPages.Observe(float64(pages))
	}
}

func (m *Metrics) ObserveFields(strategy, outcome string, found int) {
	m.fieldsTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome == "ok" {
		m.fieldsFound.Observe(float64(found))
	}
}

func (m *Metrics) ObserveUpload(bytes int64) {
	m.uploadBytes.Observe(float64(bytes))
}

func (m *Metrics) IncRateLimited() {
	m.rateLimited.Inc()
}

// BreakerStateChanged matches resilience.StateObserver.
func (m *Metrics) BreakerStateChanged(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(to))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
