package upstream

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func response(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestClassifySuccess(t *testing.T) {
	now := time.Now()
	out := Classify(response(200, `{"id":"msg_1"}`, nil), now)
	if out.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if string(out.Body) != `{"id":"msg_1"}` {
		t.Fatalf("body not preserved: %q", out.Body)
	}
}

func TestClassifyRateLimitedWithRetryAfterSeconds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := Classify(response(429, "slow down", map[string]string{"Retry-After": "120"}), now)
	if out.Kind != OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %s", out.Kind)
	}
	if out.ResetAt == nil || !out.ResetAt.Equal(now.Add(2*time.Minute)) {
		t.Fatalf("expected reset at now+120s, got %v", out.ResetAt)
	}
}

func TestClassifyRateLimitedWithHTTPDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	when := now.Add(30 * time.Minute)
	out := Classify(response(429, "", map[string]string{"Retry-After": when.Format(http.TimeFormat)}), now)
	if out.ResetAt == nil || !out.ResetAt.Equal(when) {
		t.Fatalf("expected reset at %v, got %v", when, out.ResetAt)
	}
}

func TestClassifyRateLimitedWithoutHint(t *testing.T) {
	out := Classify(response(429, "", nil), time.Now())
	if out.Kind != OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %s", out.Kind)
	}
	if out.ResetAt != nil {
		t.Fatalf("expected nil reset hint, got %v", out.ResetAt)
	}
}

func TestClassifyAuthFailed(t *testing.T) {
	for _, status := range []int{401, 403} {
		out := Classify(response(status, "nope", nil), time.Now())
		if out.Kind != OutcomeAuthFailed {
			t.Fatalf("status %d: expected auth_failed, got %s", status, out.Kind)
		}
	}
}

func TestClassifyStructuredAuthError(t *testing.T) {
	body := `{"error":{"type":"authentication_error","message":"bad session"}}`
	out := Classify(response(400, body, nil), time.Now())
	if out.Kind != OutcomeAuthFailed {
		t.Fatalf("expected auth_failed for structured error, got %s", out.Kind)
	}
}

func TestClassifyStructuredAuthErrorOn2xx(t *testing.T) {
	// The error payload outranks the status: a 200 carrying an
	// authentication error is an auth failure, not a success.
	body := `{"error":{"type":"authentication_error","message":"session expired"}}`
	out := Classify(response(200, body, nil), time.Now())
	if out.Kind != OutcomeAuthFailed {
		t.Fatalf("expected auth_failed for 200 with error payload, got %s", out.Kind)
	}
}

func TestClassifyRateLimitedWithBodyHint(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	out := Classify(response(429, `{"retry_after":60}`, nil), now)
	if out.ResetAt == nil || !out.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected reset from top-level body hint, got %v", out.ResetAt)
	}

	out = Classify(response(429, `{"error":{"type":"rate_limit_error","retry_after":90}}`, nil), now)
	if out.ResetAt == nil || !out.ResetAt.Equal(now.Add(90*time.Second)) {
		t.Fatalf("expected reset from nested body hint, got %v", out.ResetAt)
	}

	// The header wins over the body when both are present.
	out = Classify(response(429, `{"retry_after":60}`, map[string]string{"Retry-After": "120"}), now)
	if out.ResetAt == nil || !out.ResetAt.Equal(now.Add(2*time.Minute)) {
		t.Fatalf("expected header to take precedence, got %v", out.ResetAt)
	}
}

func TestParseBodyRetryHintUnusable(t *testing.T) {
	now := time.Now()
	for _, body := range []string{"", "not json", `{"retry_after":0}`, `{"retry_after":-5}`, `{"retry_after":"soon"}`, `{"error":{}}`} {
		if got := parseBodyRetryHint([]byte(body), now); got != nil {
			t.Fatalf("body %q: expected nil hint, got %v", body, got)
		}
	}
}

func TestClassifyGenericError(t *testing.T) {
	out := Classify(response(500, "boom", nil), time.Now())
	if out.Kind != OutcomeError {
		t.Fatalf("expected error, got %s", out.Kind)
	}
	if out.StatusCode != 500 {
		t.Fatalf("expected status preserved, got %d", out.StatusCode)
	}
}

func TestParseRetryAfterUnparsable(t *testing.T) {
	if got := parseRetryAfter("soon", time.Now()); got != nil {
		t.Fatalf("expected nil for unparsable header, got %v", got)
	}
	if got := parseRetryAfter("", time.Now()); got != nil {
		t.Fatalf("expected nil for absent header, got %v", got)
	}
}
