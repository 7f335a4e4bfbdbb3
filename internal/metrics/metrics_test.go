package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.LoginAttempt(OutcomeSuccess)
	m.LoginAttempt(OutcomeLockedOut)
	m.LoginAttempt(OutcomeLockedOut)
	m.Lockout()

	require.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(OutcomeLockedOut)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "POST /v1/auth/login", 429, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	require.True(t, strings.Contains(string(body), "loginguard_http_request_duration_seconds"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LoginAttempt(OutcomeSuccess)
	m.Lockout()
	m.ObserveRequest("GET", "", 200, time.Second)
	require.Nil(t, m.Registry())
}
