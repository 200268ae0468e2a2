package upstream

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OutcomeKind tags the classified result of one provider call.
type OutcomeKind int

const (
	// OutcomeSuccess is any 2xx response.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRateLimited is a 429 or an explicit rate-limit signal.
	OutcomeRateLimited
	// OutcomeAuthFailed is a 401/403 or a structured authentication error.
	OutcomeAuthFailed
	// OutcomeError is any other non-2xx response, treated as transient.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeAuthFailed:
		return "auth_failed"
	default:
		return "error"
	}
}

// Outcome is the classified result of one provider call. Body is fully read
// and the response closed by the time an Outcome is returned.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
	// ResetAt carries the provider's retry hint for rate-limited outcomes.
	ResetAt *time.Time
}

// structured error payload some provider responses carry
type providerError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Classify reads and closes the response body and maps the response into a
// single tagged outcome. All call sites share this one classification.
func Classify(resp *http.Response, now time.Time) Outcome {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	out := Outcome{StatusCode: resp.StatusCode, Body: body}

	if resp.StatusCode == http.StatusTooManyRequests {
		out.Kind = OutcomeRateLimited
		out.ResetAt = parseRetryAfter(resp.Header.Get("Retry-After"), now)
		if out.ResetAt == nil {
			out.ResetAt = parseBodyRetryHint(body, now)
		}
		return out
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		out.Kind = OutcomeAuthFailed
		return out
	}

	// A structured authentication error can arrive under any status,
	// including 2xx; it outranks the status code. A genuine success body
	// never carries an error field.
	var pe providerError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Error.Type == "authentication_error" {
		out.Kind = OutcomeAuthFailed
		return out
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Kind = OutcomeSuccess
		return out
	}

	out.Kind = OutcomeError
	return out
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
// Returns nil when the header is absent or unparsable, leaving the caller
// to fall back to the default cooldown.
func parseRetryAfter(header string, now time.Time) *time.Time {
	if header == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		t := now.Add(time.Duration(seconds) * time.Second)
		return &t
	}
	if t, err := http.ParseTime(header); err == nil {
		return &t
	}
	return nil
}

// retryHint is the JSON retry hint some rate-limit bodies carry, either at
// the top level or nested under the error object, in delta-seconds.
type retryHint struct {
	RetryAfter json.Number `json:"retry_after"`
	Error      struct {
		RetryAfter json.Number `json:"retry_after"`
	} `json:"error"`
}

// parseBodyRetryHint reads a delta-seconds retry hint out of a 429 body.
// Returns nil when the body has no usable hint.
func parseBodyRetryHint(body []byte, now time.Time) *time.Time {
	var hint retryHint
	if err := json.Unmarshal(body, &hint); err != nil {
		return nil
	}

	raw := hint.RetryAfter
	if raw == "" {
		raw = hint.Error.RetryAfter
	}
	seconds, err := raw.Int64()
	if err != nil || seconds <= 0 {
		return nil
	}

	t := now.Add(time.Duration(seconds) * time.Second)
	return &t
}
