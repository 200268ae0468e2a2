package models

import (
	"fmt"
	"time"
)

// AccountStatus represents the lifecycle state of a session account.
type AccountStatus string

const (
	StatusActive      AccountStatus = "active"
	StatusInvalid     AccountStatus = "invalid"
	StatusRateLimited AccountStatus = "rate_limited"
)

// Account represents one cookie-backed session account in the pool.
type Account struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Credential     string        `json:"credential"`
	SessionKey     string        `json:"session_key"`
	Status         AccountStatus `json:"status"`
	UsageCount     int64         `json:"usage_count"`
	LastUsed       *time.Time    `json:"last_used,omitempty"`
	RateLimitReset *time.Time    `json:"rate_limit_reset,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Validate checks structural invariants of the account record.
func (a *Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	if a.Credential == "" {
		return fmt.Errorf("credential is required")
	}
	switch a.Status {
	case StatusActive, StatusInvalid, StatusRateLimited:
	default:
		return fmt.Errorf("unknown account status: %q", a.Status)
	}
	if (a.RateLimitReset != nil) != (a.Status == StatusRateLimited) {
		return fmt.Errorf("rate_limit_reset must be set if and only if status is rate_limited")
	}
	if a.UsageCount < 0 {
		return fmt.Errorf("usage count cannot be negative")
	}
	return nil
}

// Available reports whether the account can be selected at the given instant.
// A rate-limited account whose cooldown has lapsed is still unavailable until
// the recovery sweep flips it back to active.
func (a *Account) Available(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	if a.RateLimitReset != nil && now.Before(*a.RateLimitReset) {
		return false
	}
	return true
}

// EffectiveStatus returns the status for reporting purposes: a rate-limited
// account whose cooldown already lapsed counts as active even before the
// recovery sweep persists the transition.
func (a *Account) EffectiveStatus(now time.Time) AccountStatus {
	if a.Status == StatusRateLimited && a.RateLimitReset != nil && !now.Before(*a.RateLimitReset) {
		return StatusActive
	}
	return a.Status
}

// AccountCollection is the durable wrapper around the account list,
// persisted as a single value in the store.
type AccountCollection struct {
	SchemaVersion string    `json:"version"`
	LastUpdated   time.Time `json:"last_updated"`
	Accounts      []Account `json:"accounts"`
}

// CollectionSchemaVersion is the current serialization schema.
const CollectionSchemaVersion = "1.0"

// FindByID returns a pointer into the collection for the given account ID.
func (c *AccountCollection) FindByID(id string) (*Account, bool) {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i], true
		}
	}
	return nil, false
}

// FindByCredential returns the account holding the exact canonical credential.
func (c *AccountCollection) FindByCredential(credential string) (*Account, bool) {
	for i := range c.Accounts {
		if c.Accounts[i].Credential == credential {
			return &c.Accounts[i], true
		}
	}
	return nil, false
}

// PoolStats is the aggregate view over the account collection.
type PoolStats struct {
	Total       int        `json:"total"`
	Active      int        `json:"active"`
	Invalid     int        `json:"invalid"`
	RateLimited int        `json:"rate_limited"`
	TotalUsage  int64      `json:"total_usage"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}
