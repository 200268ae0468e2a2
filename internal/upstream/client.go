// Package upstream talks to the LLM provider in its two credential modes:
// the primary messages endpoint with a bearer token and the session
// append-message endpoint with a cookie-backed browser identity.
package upstream

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
)

// Client issues provider requests in both credential modes.
type Client struct {
	upstreamCfg config.UpstreamConfig
	sessionCfg  config.SessionConfig
	bearer      *http.Client
	browser     *BrowserClient
}

// NewClient creates a provider client from the relay configuration.
func NewClient(upstreamCfg config.UpstreamConfig, sessionCfg config.SessionConfig) *Client {
	return &Client{
		upstreamCfg: upstreamCfg,
		sessionCfg:  sessionCfg,
		bearer:      &http.Client{Timeout: upstreamCfg.RequestTimeout},
		browser:     NewBrowserClient(sessionCfg.RequestTimeout),
	}
}

// SendPrimary posts the canonical body to the messages endpoint with the
// bearer token and the fixed protocol/feature headers.
func (c *Client) SendPrimary(ctx context.Context, accessToken string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.upstreamCfg.MessagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", c.upstreamCfg.ProtocolVersion)
	req.Header.Set("anthropic-beta", c.upstreamCfg.FeatureFlags)

	return c.bearer.Do(req)
}

// SendSession posts the translated body to the append-message endpoint with
// the session credential as a cookie and a browser-shaped header set.
func (c *Client) SendSession(ctx context.Context, credential string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionCfg.AppendMessageURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", credential)
	req.Header.Set("Origin", c.sessionCfg.Origin)
	req.Header.Set("Referer", c.sessionCfg.Origin+"/")

	return c.browser.Do(req)
}

// Reachable probes an endpoint and reports whether the provider answered at
// all. 401 means reachable: the service is up and rejected our dummy auth.
func (c *Client) Reachable(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, 0, err
	}
	resp, err := c.bearer.Do(req)
	latency := time.Since(start)
	if err != nil {
		return false, latency, err
	}
	resp.Body.Close()
	ok := resp.StatusCode < 500
	return ok, latency, nil
}
