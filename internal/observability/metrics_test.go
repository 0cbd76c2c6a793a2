package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/documents/1", "/api/documents/2", "/ok"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/documents/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpRequestDuration))
}

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics()

	m.ObserveEmbedding("runpod", "embed", 120*time.Millisecond, "")
	m.ObserveEmbedding("runpod", "embed", time.Second, "timeout")
	m.ObserveConsultation("txagent", "completed")
	m.ObserveRetrieval(3)
	m.IncEmergency()
	m.ObserveIngestion("pdf", "ready")
	m.IncAuditDropped()
	m.ObserveVoice("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingRequestsTotal.WithLabelValues("runpod", "embed", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingRequestsTotal.WithLabelValues("runpod", "embed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingErrorsTotal.WithLabelValues("runpod", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.consultationsTotal.WithLabelValues("txagent", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emergencyDetections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsIngested.WithLabelValues("pdf", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditEventsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.voiceGenerationTotal.WithLabelValues("ok")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveEmbedding("runpod", "embed", time.Second, "")
		m.ObserveConsultation("openai", "failed")
		m.ObserveRetrieval(0)
		m.IncEmergency()
		m.ObserveIngestion("txt", "failed")
		m.IncAuditDropped()
		m.ObserveVoice("error")
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware()(next))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.IncEmergency()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "medrag_emergency_detections_total 1")
}
