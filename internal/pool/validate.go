package pool

import (
	"regexp"
	"strings"

	"github.com/llmrelay/llmrelay/internal/errors"
)

// Session credential shape requirements.
const (
	sessionKeyMarker    = "sessionKey="
	sessionKeyPrefix    = "sk-ant-sid01-"
	minSessionKeyLength = 50
)

// Stable reasons for credential rejection, one per cause.
const (
	ReasonEmptyCredential  = "credential is empty"
	ReasonMissingMarker    = "credential must contain sessionKey="
	ReasonUnparsableKey    = "unable to extract session key"
	ReasonWrongKeyPrefix   = "session key must start with " + sessionKeyPrefix
	ReasonSessionKeyLength = "session key is too short"
)

var sessionKeyPattern = regexp.MustCompile(`sessionKey=([^;\s]+)`)

// ParsedCredential is the canonical form of a validated session credential.
type ParsedCredential struct {
	// Credential is the trimmed full cookie string.
	Credential string
	// SessionKey is the extracted secret.
	SessionKey string
}

// ValidateCredential checks a raw session credential against the required
// shape and returns its canonical form.
func ValidateCredential(raw string) (ParsedCredential, error) {
	if strings.TrimSpace(raw) == "" {
		return ParsedCredential{}, &errors.ErrCredentialValidation{Reason: ReasonEmptyCredential}
	}

	if !strings.Contains(raw, sessionKeyMarker) {
		return ParsedCredential{}, &errors.ErrCredentialValidation{Reason: ReasonMissingMarker}
	}

	match := sessionKeyPattern.FindStringSubmatch(raw)
	if match == nil {
		return ParsedCredential{}, &errors.ErrCredentialValidation{Reason: ReasonUnparsableKey}
	}

	sessionKey := match[1]
	if !strings.HasPrefix(sessionKey, sessionKeyPrefix) {
		return ParsedCredential{}, &errors.ErrCredentialValidation{Reason: ReasonWrongKeyPrefix}
	}
	if len(sessionKey) < minSessionKeyLength {
		return ParsedCredential{}, &errors.ErrCredentialValidation{Reason: ReasonSessionKeyLength}
	}

	return ParsedCredential{
		Credential: strings.TrimSpace(raw),
		SessionKey: sessionKey,
	}, nil
}
