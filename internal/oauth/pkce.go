package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/llmrelay/llmrelay/internal/config"
)

// PKCE holds the parameters for one authorization-code flow.
type PKCE struct {
	Verifier  string `json:"code_verifier"`
	Challenge string `json:"code_challenge"`
	State     string `json:"state"`
}

// GeneratePKCE creates a fresh verifier/challenge pair (S256) and state.
func GeneratePKCE() (PKCE, error) {
	verifier, err := randomURLSafe(32)
	if err != nil {
		return PKCE{}, err
	}
	state, err := randomURLSafe(32)
	if err != nil {
		return PKCE{}, err
	}

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	return PKCE{
		Verifier:  verifier,
		Challenge: challenge,
		State:     state,
	}, nil
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthorizeURL builds the provider authorization URL for the given PKCE set.
func AuthorizeURL(cfg config.OAuthConfig, pkce PKCE) string {
	params := url.Values{
		"code":                  {"true"},
		"client_id":             {cfg.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {cfg.RedirectURI},
		"scope":                 {cfg.Scopes},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {"S256"},
		"state":                 {pkce.State},
	}
	return cfg.AuthorizeURL + "?" + params.Encode()
}

// CleanAuthCode strips URL fragments and query noise pasted along with an
// authorization code.
func CleanAuthCode(code string) string {
	for _, sep := range []string{"#", "&", "?"} {
		if i := strings.Index(code, sep); i >= 0 {
			code = code[:i]
		}
	}
	return strings.TrimSpace(code)
}
