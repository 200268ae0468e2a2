package store

import "context"

// Well-known keys. The relay keeps three durable records: the OAuth token
// singleton, the serialized session account collection and the in-flight
// PKCE parameters between authorize-URL generation and code exchange.
const (
	KeyOAuthToken      = "oauth_token"
	KeyOAuthPKCE       = "oauth_pkce"
	KeySessionAccounts = "session_accounts"
)

// Store is the narrow durable key/value interface the relay persists through.
// Values are opaque serialized documents; every mutation is a full-document
// write and the last full write wins.
type Store interface {
	// Get returns the value for key. The second result is false when the key
	// is absent, which is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put writes the value for key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}
