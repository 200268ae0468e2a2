package models

import "time"

// TokenRecord is the stored OAuth bearer token. It is replaced wholesale on
// every refresh; ExpiresAt is always derived from ObtainedAt + ExpiresIn,
// never supplied by a caller.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	ObtainedAt   time.Time `json:"obtained_at"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"token_type"`
}

// TokenPayload is the raw response from the provider's token endpoint.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// NewTokenRecord builds a stored record from a token endpoint payload,
// deriving the absolute expiry from the acquisition instant.
func NewTokenRecord(p TokenPayload, now time.Time) TokenRecord {
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return TokenRecord{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
		ExpiresAt:    now.Add(time.Duration(p.ExpiresIn) * time.Second),
		ObtainedAt:   now,
		Scope:        p.Scope,
		TokenType:    tokenType,
	}
}

// Expired reports whether the token is missing or past its expiry instant.
func (t *TokenRecord) Expired(now time.Time) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return now.After(t.ExpiresAt)
}
