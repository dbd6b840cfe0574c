package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal      *prometheus.CounterVec
	uploadBytes       *prometheus.HistogramVec
	exportsTotal      *prometheus.CounterVec
	approvalsTotal    *prometheus.CounterVec
	editConflictTotal *prometheus.CounterVec
	staleUpdatesTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tdk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tdk",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Total accepted document uploads by file type.",
		},
		[]string{"service", "file_type"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tdk",
			Subsystem: "documents",
			Name:      "upload_bytes",
			Help:      "Distribution of uploaded file sizes.",
			Buckets:   prometheus.ExponentialBuckets(64<<10, 4, 8),
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "exports",
			Name:      "total",
			Help:      "Total proposal exports by outcome.",
		},
		[]string{"service", "outcome"},
	)
	approvalsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "responses",
			Name:      "approvals_total",
			Help:      "Total response approvals.",
		},
		[]string{"service"},
	)
	editConflictTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "responses",
			Name:      "edit_conflicts_total",
			Help:      "Total response edits rejected on a stale version.",
		},
		[]string{"service"},
	)
	staleUpdatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdk",
			Subsystem: "lifecycle",
			Name:      "stale_updates_total",
			Help:      "Total pipeline callbacks dropped as stale.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		uploadBytes,
		exportsTotal,
		approvalsTotal,
		editConflictTotal,
		staleUpdatesTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		uploadsTotal:      uploadsTotal,
		uploadBytes:       uploadBytes,
		exportsTotal:      exportsTotal,
		approvalsTotal:    approvalsTotal,
		editConflictTotal: editConflictTotal,
		staleUpdatesTotal: staleUpdatesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// pathVerbs are literal segments that may follow a collection name and must
// not be collapsed as ids ("responses/generate").
var pathVerbs = map[string]bool{
	"generate": true,
}

// normalizePath collapses resource ids so the path label stays bounded.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if pathVerbs[parts[i]] {
			continue
		}
		switch parts[i-1] {
		case "documents":
			parts[i] = "{document_id}"
		case "responses":
			parts[i] = "{response_id}"
		case "requirements":
			parts[i] = "{requirement_id}"
		case "comments":
			parts[i] = "{comment_id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) RecordUpload(service, fileType string, sizeBytes int64) {
	if fileType == "" {
		fileType = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, fileType).Inc()
	m.uploadBytes.WithLabelValues(service).Observe(float64(sizeBytes))
}

func (m *HTTPServerMetrics) RecordExport(service string, reused bool) {
	outcome := "rendered"
	if reused {
		outcome = "reused"
	}
	m.exportsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordApproval(service string) {
	m.approvalsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordEditConflict(service string) {
	m.editConflictTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordStaleUpdate(service string) {
	m.staleUpdatesTotal.WithLabelValues(service).Inc()
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
