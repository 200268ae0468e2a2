package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountValidate(t *testing.T) {
	now := time.Now()
	reset := now.Add(time.Hour)

	valid := Account{ID: "a1", Credential: "sessionKey=x", Status: StatusActive}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		account Account
	}{
		{"missing id", Account{Credential: "c", Status: StatusActive}},
		{"missing credential", Account{ID: "a", Status: StatusActive}},
		{"unknown status", Account{ID: "a", Credential: "c", Status: "paused"}},
		{"reset without rate_limited", Account{ID: "a", Credential: "c", Status: StatusActive, RateLimitReset: &reset}},
		{"rate_limited without reset", Account{ID: "a", Credential: "c", Status: StatusRateLimited}},
		{"negative usage", Account{ID: "a", Credential: "c", Status: StatusActive, UsageCount: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.account.Validate())
		})
	}
}

func TestAccountAvailable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	active := Account{Status: StatusActive}
	assert.True(t, active.Available(now))

	invalid := Account{Status: StatusInvalid}
	assert.False(t, invalid.Available(now))

	cooling := Account{Status: StatusRateLimited, RateLimitReset: &future}
	assert.False(t, cooling.Available(now))

	// A lapsed cooldown still needs the recovery sweep before selection.
	lapsed := Account{Status: StatusRateLimited, RateLimitReset: &past}
	assert.False(t, lapsed.Available(now))
}

func TestAccountEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cooling := Account{Status: StatusRateLimited, RateLimitReset: &future}
	assert.Equal(t, StatusRateLimited, cooling.EffectiveStatus(now))

	lapsed := Account{Status: StatusRateLimited, RateLimitReset: &past}
	assert.Equal(t, StatusActive, lapsed.EffectiveStatus(now))

	invalid := Account{Status: StatusInvalid}
	assert.Equal(t, StatusInvalid, invalid.EffectiveStatus(now))
}

func TestCollectionLookups(t *testing.T) {
	col := AccountCollection{
		Accounts: []Account{
			{ID: "a1", Credential: "cred-1"},
			{ID: "a2", Credential: "cred-2"},
		},
	}

	found, ok := col.FindByID("a2")
	require.True(t, ok)
	assert.Equal(t, "a2", found.ID)

	_, ok = col.FindByID("missing")
	assert.False(t, ok)

	found, ok = col.FindByCredential("cred-1")
	require.True(t, ok)
	assert.Equal(t, "a1", found.ID)

	// Lookups return pointers into the collection, mutations stick.
	found.Name = "renamed"
	assert.Equal(t, "renamed", col.Accounts[0].Name)
}
