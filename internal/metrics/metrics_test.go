package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.RecordBooking("booked")
	m.RecordBooking("booked")
	m.RecordBooking("session_not_available")
	m.RecordConfirmation("confirmed")
	m.RecordRateLimited()
	m.ObserveHTTPRequest(http.MethodPost, "/sessions/book", http.StatusCreated, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("session_not_available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("POST", "/sessions/book", "201")))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RecordBooking("pending")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trial_session_bookings_total{result="pending"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordBooking("booked")
	m.RecordConfirmation("confirmed")
	m.RecordRateLimited()
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
