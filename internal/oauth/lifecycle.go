package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/store"
)

// Lifecycle owns the stored OAuth token record: status reporting, the
// authorization-code exchange and refresh against the provider's token
// endpoint. The record is replaced wholesale on every successful call.
type Lifecycle struct {
	cfg    config.OAuthConfig
	store  store.Store
	client *http.Client
	logger *logging.Logger
	now    func() time.Time
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Lifecycle) {
		l.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(lg *logging.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = lg
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// NewLifecycle creates a token lifecycle over the given store.
func NewLifecycle(cfg config.OAuthConfig, s store.Store, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		cfg:    cfg,
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadToken reads the stored record. Absence is not an error.
func (l *Lifecycle) LoadToken(ctx context.Context) (*models.TokenRecord, bool, error) {
	data, ok, err := l.store.Get(ctx, store.KeyOAuthToken)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var record models.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, &errors.ErrStoreQuery{Operation: "decode token record", Err: err}
	}
	return &record, true, nil
}

func (l *Lifecycle) saveToken(ctx context.Context, record models.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &errors.ErrStoreQuery{Operation: "encode token record", Err: err}
	}
	return l.store.Put(ctx, store.KeyOAuthToken, data)
}

// TokenStatus is the reportable view of the stored token.
type TokenStatus struct {
	HasToken   bool       `json:"has_token"`
	Expired    bool       `json:"expired"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ObtainedAt *time.Time `json:"obtained_at,omitempty"`
	Scope      string     `json:"scope,omitempty"`
}

// Status reports presence and expiry of the stored token.
func (l *Lifecycle) Status(ctx context.Context) (TokenStatus, error) {
	record, ok, err := l.LoadToken(ctx)
	if err != nil {
		return TokenStatus{}, err
	}
	if !ok {
		return TokenStatus{}, nil
	}
	return TokenStatus{
		HasToken:   true,
		Expired:    record.Expired(l.now()),
		ExpiresAt:  &record.ExpiresAt,
		ObtainedAt: &record.ObtainedAt,
		Scope:      record.Scope,
	}, nil
}

// Exchange trades an authorization code (plus its PKCE verifier and state)
// for the first token record and stores it.
func (l *Lifecycle) Exchange(ctx context.Context, code string, pkce PKCE) (*models.TokenRecord, error) {
	body := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     l.cfg.ClientID,
		"code":          CleanAuthCode(code),
		"redirect_uri":  l.cfg.RedirectURI,
		"code_verifier": pkce.Verifier,
		"state":         pkce.State,
	}

	payload, status, err := l.postToken(ctx, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &errors.ErrExchangeRejected{StatusCode: status, Body: payload.raw}
	}

	record := models.NewTokenRecord(payload.TokenPayload, l.now())
	if err := l.saveToken(ctx, record); err != nil {
		return nil, err
	}

	l.logger.InfoWithContext(ctx, "oauth token obtained",
		"expires_at", record.ExpiresAt.Format(time.RFC3339),
		"scope", record.Scope,
	)
	return &record, nil
}

// Refresh renews the stored token via grant_type=refresh_token and replaces
// the record. The old record is left untouched on any failure.
func (l *Lifecycle) Refresh(ctx context.Context) (*models.TokenRecord, error) {
	current, ok, err := l.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.ErrNoToken{}
	}
	if current.RefreshToken == "" {
		return nil, &errors.ErrNoRefreshToken{}
	}

	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": current.RefreshToken,
		"client_id":     l.cfg.ClientID,
	}

	payload, status, err := l.postToken(ctx, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &errors.ErrRefreshRejected{StatusCode: status, Body: payload.raw}
	}

	record := models.NewTokenRecord(payload.TokenPayload, l.now())
	if err := l.saveToken(ctx, record); err != nil {
		return nil, err
	}

	l.logger.InfoWithContext(ctx, "oauth token refreshed",
		"expires_at", record.ExpiresAt.Format(time.RFC3339),
	)
	return &record, nil
}

type tokenResponse struct {
	models.TokenPayload
	raw string
}

func (l *Lifecycle) postToken(ctx context.Context, body map[string]string) (tokenResponse, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return tokenResponse{}, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.TokenURL, bytes.NewReader(data))
	if err != nil {
		return tokenResponse{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return tokenResponse{}, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResponse{}, resp.StatusCode, err
	}

	out := tokenResponse{raw: string(raw)}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, &out.TokenPayload); err != nil {
			return tokenResponse{}, resp.StatusCode, err
		}
	}
	return out, resp.StatusCode, nil
}
