package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medrag"

// Metrics owns every collector the service exports. All record methods are
// safe on a nil receiver so components can run uninstrumented in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	embeddingRequestsTotal   *prometheus.CounterVec
	embeddingRequestDuration *prometheus.HistogramVec
	embeddingErrorsTotal     *prometheus.CounterVec

	consultationsTotal   *prometheus.CounterVec
	retrievedDocuments   prometheus.Histogram
	emergencyDetections  prometheus.Counter
	documentsIngested    *prometheus.CounterVec
	auditEventsDropped   prometheus.Counter
	voiceGenerationTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path", "status"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		embeddingRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		}, []string{"provider", "operation", "status"}),
		embeddingRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),
		embeddingErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors by class",
		}, []string{"provider", "error_type"}),
		consultationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultations_total",
			Help:      "Completed pipeline runs by agent and outcome",
		}, []string{"agent", "outcome"}),
		retrievedDocuments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_documents",
			Help:      "Number of documents returned by similarity search",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 20},
		}),
		emergencyDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_detections_total",
			Help:      "Queries short-circuited by the emergency check",
		}),
		documentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Document uploads by file type and status",
		}, []string{"file_type", "status"}),
		auditEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Consultation audit events dropped because the buffer was full",
		}),
		voiceGenerationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_generations_total",
			Help:      "Text-to-speech requests by status",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.embeddingRequestsTotal,
		m.embeddingRequestDuration,
		m.embeddingErrorsTotal,
		m.consultationsTotal,
		m.retrievedDocuments,
		m.emergencyDetections,
		m.documentsIngested,
		m.auditEventsDropped,
		m.voiceGenerationTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records HTTP request duration and count keyed by chi route pattern.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := strconv.Itoa(ww.status)

			m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// ObserveEmbedding records one embedding call. errorType is empty on success.
func (m *Metrics) ObserveEmbedding(provider, operation string, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	status := "ok"
	if errorType != "" {
		status = "error"
		m.embeddingErrorsTotal.WithLabelValues(provider, errorType).Inc()
	}
	m.embeddingRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.embeddingRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// ObserveConsultation records the terminal state of a pipeline run.
func (m *Metrics) ObserveConsultation(agent, outcome string) {
	if m == nil {
		return
	}
	m.consultationsTotal.WithLabelValues(agent, outcome).Inc()
}

// ObserveRetrieval records how many documents a similarity search returned.
func (m *Metrics) ObserveRetrieval(count int) {
	if m == nil {
		return
	}
	m.retrievedDocuments.Observe(float64(count))
}

// IncEmergency counts one emergency short-circuit.
func (m *Metrics) IncEmergency() {
	if m == nil {
		return
	}
	m.emergencyDetections.Inc()
}

// ObserveIngestion records a document upload attempt.
func (m *Metrics) ObserveIngestion(fileType, status string) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(fileType, status).Inc()
}

// IncAuditDropped counts one audit event lost to a full buffer.
func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditEventsDropped.Inc()
}

// ObserveVoice records a text-to-speech request.
func (m *Metrics) ObserveVoice(status string) {
	if m == nil {
		return
	}
	m.voiceGenerationTotal.WithLabelValues(status).Inc()
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
