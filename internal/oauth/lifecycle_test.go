package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(t *testing.T, tokenURL string, now time.Time) (*Lifecycle, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	l := NewLifecycle(
		config.OAuthConfig{TokenURL: tokenURL, ClientID: "client-1", RedirectURI: "https://cb"},
		s,
		WithClock(func() time.Time { return now }),
		WithLogger(logging.NewLogger(logging.WithOutput(&bytes.Buffer{}))),
	)
	return l, s
}

func TestStatusWithoutToken(t *testing.T) {
	l, _ := newLifecycle(t, "http://unused", time.Now())

	status, err := l.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.HasToken)
}

func TestExchangeStoresToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(models.TokenPayload{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
			Scope:        "user:inference",
		})
	}))
	defer srv.Close()

	l, _ := newLifecycle(t, srv.URL, now)

	record, err := l.Exchange(context.Background(), "the-code#fragment", PKCE{Verifier: "v", State: "s"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", record.AccessToken)
	assert.True(t, record.ExpiresAt.Equal(now.Add(time.Hour)))

	// The fragment is stripped before the code goes on the wire.
	assert.Equal(t, "the-code", gotBody["code"])
	assert.Equal(t, "authorization_code", gotBody["grant_type"])
	assert.Equal(t, "v", gotBody["code_verifier"])
	assert.Equal(t, "s", gotBody["state"])

	status, err := l.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.HasToken)
	assert.False(t, status.Expired)
}

func TestExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	l, s := newLifecycle(t, srv.URL, time.Now())

	_, err := l.Exchange(context.Background(), "bad-code", PKCE{})
	var rejected *errors.ErrExchangeRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)

	// Nothing was stored.
	_, ok, err := s.Get(context.Background(), store.KeyOAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshReplacesRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh_token", body["grant_type"])
		assert.Equal(t, "refresh-old", body["refresh_token"])
		json.NewEncoder(w).Encode(models.TokenPayload{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresIn:    7200,
		})
	}))
	defer srv.Close()

	l, s := newLifecycle(t, srv.URL, now)

	old := models.NewTokenRecord(models.TokenPayload{
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresIn:    10,
	}, now.Add(-time.Hour))
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), store.KeyOAuthToken, data))

	record, err := l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", record.AccessToken)
	assert.Equal(t, "refresh-new", record.RefreshToken)
	assert.True(t, record.ExpiresAt.Equal(now.Add(2*time.Hour)))
}

func TestRefreshWithoutToken(t *testing.T) {
	l, _ := newLifecycle(t, "http://unused", time.Now())

	_, err := l.Refresh(context.Background())
	var noToken *errors.ErrNoToken
	require.ErrorAs(t, err, &noToken)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	now := time.Now()
	l, s := newLifecycle(t, "http://unused", now)

	record := models.NewTokenRecord(models.TokenPayload{AccessToken: "access", ExpiresIn: 60}, now)
	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), store.KeyOAuthToken, data))

	_, err = l.Refresh(context.Background())
	var missing *errors.ErrNoRefreshToken
	require.ErrorAs(t, err, &missing)
}

func TestRefreshRejectedKeepsOldRecord(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid refresh token"))
	}))
	defer srv.Close()

	l, s := newLifecycle(t, srv.URL, now)

	old := models.NewTokenRecord(models.TokenPayload{
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresIn:    60,
	}, now)
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), store.KeyOAuthToken, data))

	_, err = l.Refresh(context.Background())
	var rejected *errors.ErrRefreshRejected
	require.ErrorAs(t, err, &rejected)

	current, ok, err := l.LoadToken(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-old", current.AccessToken, "failed refresh must not clobber the stored record")
}
