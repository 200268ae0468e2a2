package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequestLatency("/v1/messages", "POST", "200", 0.01)
	m.RecordHTTPRequest("/v1/messages", "POST", "200")
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()
	m.RecordDispatch("oauth", "success")
	m.RecordDispatch("session", "exhausted")
	m.RecordSessionAttempt("rate_limited")
	m.RecordDemotion("auth_failed")
	m.SetPoolAccounts("active", 3)
	m.RecordRecoveries(2)
	m.RecordTokenRefresh("success")
	m.RecordError("dispatch_error", "/v1/messages")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_request_latency_seconds") {
		t.Fatalf("expected metrics output to contain request latency metric")
	}
	if !strings.Contains(body, "test_dispatch_outcomes_total") {
		t.Fatalf("expected metrics output to contain dispatch outcomes metric")
	}

	if _, err := m.registry.Gather(); err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
}
