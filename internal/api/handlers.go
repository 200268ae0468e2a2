package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/store"
)

// handleRelay relays one chat-completion request upstream.
func (s *Server) handleRelay(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &errors.ErrBadRequest{Reason: err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, &errors.ErrBadRequest{Reason: "messages must not be empty"})
		return
	}

	result, err := s.dispatcher.Handle(c.Request.Context(), req)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "relay dispatch failed",
			"error", err.Error(),
		)
		s.metrics.RecordError("dispatch_error", "/v1/messages")
		s.alertOnExhaustion(err)
		writeError(c, err)
		return
	}

	s.logger.InfoWithContext(c.Request.Context(), "relay dispatch succeeded",
		"mode", string(result.Mode),
		"attempts", len(result.Attempts),
	)
	c.Data(result.StatusCode, "application/json", result.Body)
}

// alertOnExhaustion notifies the operator when the whole pool has been
// burned through. Empty-pool errors are routine and stay quiet.
func (s *Server) alertOnExhaustion(err error) {
	if _, ok := err.(*errors.ErrPoolExhausted); !ok {
		return
	}
	s.notifier.Send(fmt.Sprintf("*llmrelay*: session pool exhausted: %s", err.Error()))
}

// AccountResponse is the redacted account view: the stored credential never
// leaves the server, only a masked session key fragment.
type AccountResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SessionKeyHint string     `json:"session_key_hint"`
	Status         string     `json:"status"`
	UsageCount     int64      `json:"usage_count"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
	RateLimitReset *time.Time `json:"rate_limit_reset,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func accountResponse(a models.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		SessionKeyHint: maskSessionKey(a.SessionKey),
		Status:         string(a.Status),
		UsageCount:     a.UsageCount,
		LastUsed:       a.LastUsed,
		RateLimitReset: a.RateLimitReset,
		CreatedAt:      a.CreatedAt,
	}
}

func maskSessionKey(key string) string {
	if len(key) <= 16 {
		return strings.Repeat("*", len(key))
	}
	return key[:12] + "..." + key[len(key)-4:]
}

// handleListAccounts returns the full pool, redacted.
func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.pool.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, accountResponse(a))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateAccountRequest registers one session credential in the pool.
type CreateAccountRequest struct {
	Name       string `json:"name,omitempty"`
	Credential string `json:"credential" binding:"required"`
}

// handleCreateAccount validates and registers a session credential.
func (s *Server) handleCreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &errors.ErrBadRequest{Reason: err.Error()})
		return
	}

	account, err := s.pool.Create(c.Request.Context(), req.Name, req.Credential)
	if err != nil {
		s.logger.WarnWithContext(c.Request.Context(), "account creation rejected",
			"error", err.Error(),
		)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, accountResponse(account))
}

// handleDeleteAccount removes an account from the pool.
func (s *Server) handleDeleteAccount(c *gin.Context) {
	id := c.Param("id")

	removed, err := s.pool.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "deleted",
		"account": accountResponse(removed),
	})
}

// handlePoolStats returns aggregate pool statistics.
func (s *Server) handlePoolStats(c *gin.Context) {
	stats, err := s.pool.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleTokenStatus reports presence and expiry of the stored OAuth token.
func (s *Server) handleTokenStatus(c *gin.Context) {
	status, err := s.tokens.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// AuthURLResponse carries a freshly generated authorization URL.
type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// handleAuthURL generates a PKCE set, persists it for the upcoming exchange
// and returns the provider authorization URL.
func (s *Server) handleAuthURL(c *gin.Context) {
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		writeError(c, err)
		return
	}

	data, err := json.Marshal(pkce)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.store.Put(c.Request.Context(), store.KeyOAuthPKCE, data); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthURLResponse{
		AuthURL: oauth.AuthorizeURL(s.oauthConfig, pkce),
		State:   pkce.State,
	})
}

// ExchangeRequest carries the pasted authorization code.
type ExchangeRequest struct {
	Code string `json:"code"`
}

// handleExchange trades the authorization code for the first token record,
// using the PKCE set persisted by the auth-url step.
func (s *Server) handleExchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &errors.ErrBadRequest{Reason: err.Error()})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(c, &errors.ErrMissingParams{What: "code"})
		return
	}

	data, ok, err := s.store.Get(c.Request.Context(), store.KeyOAuthPKCE)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, &errors.ErrMissingParams{What: "pkce parameters, request an auth-url first"})
		return
	}

	var pkce oauth.PKCE
	if err := json.Unmarshal(data, &pkce); err != nil {
		writeError(c, &errors.ErrStoreQuery{Operation: "decode pkce parameters", Err: err})
		return
	}

	record, err := s.tokens.Exchange(c.Request.Context(), req.Code, pkce)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "code exchange failed",
			"error", err.Error(),
		)
		writeError(c, err)
		return
	}

	// One exchange per auth-url: the PKCE set is single-use.
	_ = s.store.Delete(c.Request.Context(), store.KeyOAuthPKCE)

	c.JSON(http.StatusOK, gin.H{
		"status":     "token stored",
		"expires_at": record.ExpiresAt,
		"scope":      record.Scope,
	})
}

// handleRefresh renews the stored token on demand.
func (s *Server) handleRefresh(c *gin.Context) {
	record, err := s.tokens.Refresh(c.Request.Context())
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "token refresh failed",
			"error", err.Error(),
		)
		if s.metrics != nil {
			s.metrics.RecordTokenRefresh("failure")
		}
		writeError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordTokenRefresh("success")
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "token refreshed",
		"expires_at": record.ExpiresAt,
	})
}
