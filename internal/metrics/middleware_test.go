package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/jobs/{job_id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	r.Post("/v1/ingest", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.WriteHeader(http.StatusOK)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	badBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "422"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil),
		httptest.NewRequest(http.MethodPost, "/v1/ingest", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.InDelta(t, okBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")), 1e-9)
	require.InDelta(t, badBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "422")), 1e-9, "first status wins")
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
	require.Zero(t, testutil.ToFloat64(httpRequestsInFlight))
}

func TestMiddlewareSkipsProbes(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.InDelta(t, before, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")), 1e-9)
}
