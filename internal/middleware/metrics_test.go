package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRequestAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	r := chi.NewRouter()
	r.Use(Metrics(metrics))
	r.Get("/api/v1/products", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var foundTotal, foundDuration bool
	for _, mf := range families {
		switch *mf.Name {
		case "test_http_requests_total":
			foundTotal = true
			assert.Greater(t, len(mf.Metric), 0)
		case "test_http_request_duration_seconds":
			foundDuration = true
		}
	}
	assert.True(t, foundTotal)
	assert.True(t, foundDuration)
}

func TestMetrics_PreservesStatusCode(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusNotFound, http.StatusBadGateway} {
		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics("test", reg)

		r := chi.NewRouter()
		r.Use(Metrics(metrics))
		r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, status, w.Code)
	}
}

func TestMetrics_NoRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	handler := Metrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/unmatched", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.WriteHeader(http.StatusAccepted)

	assert.Equal(t, http.StatusAccepted, sw.statusCode)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusWriter_DefaultStatus(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.Write([]byte("body"))

	assert.Equal(t, http.StatusOK, sw.statusCode)
}
