// Package dispatch drives the dual-mode relay protocol: one OAuth attempt,
// then a bounded retry loop over the session account pool.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/metrics"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/pool"
	"github.com/llmrelay/llmrelay/internal/translate"
	"github.com/llmrelay/llmrelay/internal/upstream"
)

// ProviderClient is the slice of the upstream client the orchestrator needs.
type ProviderClient interface {
	SendPrimary(ctx context.Context, accessToken string, body []byte) (*http.Response, error)
	SendSession(ctx context.Context, credential string, body []byte) (*http.Response, error)
}

// Mode names the credential mode that produced a result.
type Mode string

const (
	ModeOAuth   Mode = "oauth"
	ModeSession Mode = "session"
)

// Attempt records the outcome of one session-pool iteration. The full
// history is carried on the terminal error so operators can see exactly
// which accounts were tried and how each one failed.
type Attempt struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Outcome     string `json:"outcome"`
	StatusCode  int    `json:"status_code,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Result is a successful relay outcome.
type Result struct {
	Mode       Mode
	StatusCode int
	Body       []byte
	Attempts   []Attempt
}

// Orchestrator coordinates the OAuth attempt and the session retry loop.
type Orchestrator struct {
	pool        *pool.Pool
	tokens      *oauth.Lifecycle
	client      ProviderClient
	logger      *logging.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithMetrics enables dispatch metric recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator. maxAttempts bounds the session retry loop.
func New(p *pool.Pool, tokens *oauth.Lifecycle, client ProviderClient, maxAttempts int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pool:        p,
		tokens:      tokens,
		client:      client,
		logger:      logging.NewLogger(),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle relays one canonical chat request: OAuth first, session fallback.
func (o *Orchestrator) Handle(ctx context.Context, req models.ChatRequest) (*Result, error) {
	if result := o.tryOAuth(ctx, req); result != nil {
		o.recordDispatch(string(ModeOAuth), "success")
		return result, nil
	}

	result, err := o.trySession(ctx, req)
	if err != nil {
		o.recordDispatch(string(ModeSession), "failed")
		return nil, err
	}
	o.recordDispatch(string(ModeSession), "success")
	return result, nil
}

func (o *Orchestrator) recordDispatch(mode, outcome string) {
	if o.metrics != nil {
		o.metrics.RecordDispatch(mode, outcome)
	}
}

func (o *Orchestrator) recordAttempt(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordSessionAttempt(outcome)
	}
}

func (o *Orchestrator) recordDemotion(reason string) {
	if o.metrics != nil {
		o.metrics.RecordDemotion(reason)
	}
}

// tryOAuth issues the bearer-mode request. It returns nil — falling through
// to session mode — when the token is absent or expired, the transport
// fails, or the provider answers non-2xx. The OAuth mode is never retried.
func (o *Orchestrator) tryOAuth(ctx context.Context, req models.ChatRequest) *Result {
	record, ok, err := o.tokens.LoadToken(ctx)
	if err != nil {
		o.logger.ErrorWithContext(ctx, "failed to load oauth token", "error", err.Error())
		return nil
	}
	if !ok || record.Expired(o.now()) {
		o.logger.DebugWithContext(ctx, "oauth token absent or expired, using session mode")
		return nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil
	}

	resp, err := o.client.SendPrimary(ctx, record.AccessToken, body)
	if err != nil {
		o.logger.WarnWithContext(ctx, "oauth request transport failure", "error", err.Error())
		return nil
	}

	outcome := upstream.Classify(resp, o.now())
	if outcome.Kind != upstream.OutcomeSuccess {
		o.logger.WarnWithContext(ctx, "oauth request rejected, falling back to session mode",
			"status", outcome.StatusCode,
		)
		return nil
	}

	return &Result{
		Mode:       ModeOAuth,
		StatusCode: outcome.StatusCode,
		Body:       outcome.Body,
	}
}

// trySession runs the bounded retry loop over the account pool.
func (o *Orchestrator) trySession(ctx context.Context, req models.ChatRequest) (*Result, error) {
	sessionBody, err := json.Marshal(translate.ToSessionRequest(req))
	if err != nil {
		return nil, err
	}

	var attempts []Attempt

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		account, err := o.pool.SelectAvailable(ctx)
		if err != nil {
			return nil, err
		}
		if account == nil {
			if len(attempts) > 0 {
				return nil, o.exhausted(attempts)
			}
			return nil, &errors.ErrPoolEmpty{}
		}

		o.logger.InfoWithContext(ctx, "session attempt",
			"attempt", attempt,
			"max_attempts", o.maxAttempts,
			"account_id", account.ID,
			"account_name", account.Name,
		)

		resp, err := o.client.SendSession(ctx, account.Credential, sessionBody)
		if err != nil {
			// Transport failure: possibly transient, account keeps its status.
			o.recordAttempt("transport_error")
			attempts = append(attempts, Attempt{
				AccountID:   account.ID,
				AccountName: account.Name,
				Outcome:     "transport_error",
				Detail:      err.Error(),
			})
			continue
		}

		outcome := upstream.Classify(resp, o.now())
		switch outcome.Kind {
		case upstream.OutcomeRateLimited:
			o.recordAttempt(outcome.Kind.String())
			o.recordDemotion("rate_limited")
			if markErr := o.pool.MarkRateLimited(ctx, account.ID, outcome.ResetAt); markErr != nil {
				o.logger.ErrorWithContext(ctx, "failed to mark account rate limited",
					"account_id", account.ID,
					"error", markErr.Error(),
				)
			}
			attempts = append(attempts, Attempt{
				AccountID:   account.ID,
				AccountName: account.Name,
				Outcome:     outcome.Kind.String(),
				StatusCode:  outcome.StatusCode,
			})

		case upstream.OutcomeAuthFailed:
			o.recordAttempt(outcome.Kind.String())
			o.recordDemotion("invalid")
			if markErr := o.pool.MarkInvalid(ctx, account.ID); markErr != nil {
				o.logger.ErrorWithContext(ctx, "failed to mark account invalid",
					"account_id", account.ID,
					"error", markErr.Error(),
				)
			}
			attempts = append(attempts, Attempt{
				AccountID:   account.ID,
				AccountName: account.Name,
				Outcome:     outcome.Kind.String(),
				StatusCode:  outcome.StatusCode,
			})

		case upstream.OutcomeError:
			o.recordAttempt(outcome.Kind.String())
			// Possibly transient upstream trouble, no demotion.
			attempts = append(attempts, Attempt{
				AccountID:   account.ID,
				AccountName: account.Name,
				Outcome:     outcome.Kind.String(),
				StatusCode:  outcome.StatusCode,
				Detail:      truncate(string(outcome.Body), 256),
			})

		case upstream.OutcomeSuccess:
			o.recordAttempt(outcome.Kind.String())
			canonical := translate.FromSessionResponse(outcome.Body, req)
			body, err := json.Marshal(canonical)
			if err != nil {
				return nil, err
			}
			return &Result{
				Mode:       ModeSession,
				StatusCode: http.StatusOK,
				Body:       body,
				Attempts:   attempts,
			}, nil
		}
	}

	return nil, o.exhausted(attempts)
}

func (o *Orchestrator) exhausted(attempts []Attempt) error {
	lastErr := ""
	if len(attempts) > 0 {
		last := attempts[len(attempts)-1]
		lastErr = fmt.Sprintf("%s (HTTP %d)", last.Outcome, last.StatusCode)
		if last.Detail != "" {
			lastErr = fmt.Sprintf("%s: %s", lastErr, last.Detail)
		}
	}
	return &errors.ErrPoolExhausted{Attempts: len(attempts), LastErr: lastErr}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
