package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{session}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(mux)

	counter := HTTPRequests.WithLabelValues("GET", "GET /sessions/{session}", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/sessions/alpha", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	handler := Middleware(http.NewServeMux())

	counter := HTTPRequests.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordDelivery(t *testing.T) {
	okBefore := testutil.ToFloat64(Deliveries.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(Deliveries.WithLabelValues("failed"))

	RecordDelivery(true)
	RecordDelivery(false)
	RecordDelivery(false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(Deliveries.WithLabelValues("ok")))
	assert.Equal(t, failedBefore+2, testutil.ToFloat64(Deliveries.WithLabelValues("failed")))
}
