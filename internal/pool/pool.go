package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/store"
)

// Pool manages the session account collection through the durable store.
// It holds no state of its own: every operation is one read-modify-write
// cycle against the store, and the last full write wins. Concurrent
// mutations may race; that is an accepted property of the design.
type Pool struct {
	store    store.Store
	logger   *logging.Logger
	cooldown time.Duration
	now      func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New creates a Pool over the given store. cooldown is the default
// rate-limit cooldown applied when the provider supplies no reset hint.
func New(s store.Store, cooldown time.Duration, opts ...Option) *Pool {
	p := &Pool{
		store:    s,
		logger:   logging.NewLogger(),
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// load reads the full account collection. An absent key yields an empty
// collection, not an error.
func (p *Pool) load(ctx context.Context) (*models.AccountCollection, error) {
	data, ok, err := p.store.Get(ctx, store.KeySessionAccounts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.AccountCollection{SchemaVersion: models.CollectionSchemaVersion}, nil
	}

	var col models.AccountCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, &errors.ErrStoreQuery{Operation: "decode account collection", Err: err}
	}
	return &col, nil
}

// save writes the full collection back, stamping version and update time.
func (p *Pool) save(ctx context.Context, col *models.AccountCollection) error {
	col.SchemaVersion = models.CollectionSchemaVersion
	col.LastUpdated = p.now().UTC()

	data, err := json.Marshal(col)
	if err != nil {
		return &errors.ErrStoreQuery{Operation: "encode account collection", Err: err}
	}
	return p.store.Put(ctx, store.KeySessionAccounts, data)
}

// List returns all accounts in the pool.
func (p *Pool) List(ctx context.Context) ([]models.Account, error) {
	col, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return col.Accounts, nil
}

// Create validates the raw credential and appends a new active account.
// A credential already present in the pool is rejected.
func (p *Pool) Create(ctx context.Context, name, rawCredential string) (models.Account, error) {
	parsed, err := ValidateCredential(rawCredential)
	if err != nil {
		return models.Account{}, err
	}

	col, err := p.load(ctx)
	if err != nil {
		return models.Account{}, err
	}

	if existing, ok := col.FindByCredential(parsed.Credential); ok {
		return models.Account{}, &errors.ErrDuplicateCredential{AccountName: existing.Name}
	}

	if name == "" {
		name = fmt.Sprintf("Account %d", len(col.Accounts)+1)
	}

	account := models.Account{
		ID:         uuid.New().String(),
		Name:       name,
		Credential: parsed.Credential,
		SessionKey: parsed.SessionKey,
		Status:     models.StatusActive,
		CreatedAt:  p.now().UTC(),
	}

	col.Accounts = append(col.Accounts, account)
	if err := p.save(ctx, col); err != nil {
		return models.Account{}, err
	}

	p.logger.InfoWithContext(ctx, "session account created",
		"account_id", account.ID,
		"name", account.Name,
	)
	return account, nil
}

// Delete removes an account by ID and returns the removed record.
func (p *Pool) Delete(ctx context.Context, id string) (models.Account, error) {
	col, err := p.load(ctx)
	if err != nil {
		return models.Account{}, err
	}

	for i := range col.Accounts {
		if col.Accounts[i].ID != id {
			continue
		}
		removed := col.Accounts[i]
		col.Accounts = append(col.Accounts[:i], col.Accounts[i+1:]...)
		if err := p.save(ctx, col); err != nil {
			return models.Account{}, err
		}
		p.logger.InfoWithContext(ctx, "session account deleted", "account_id", id)
		return removed, nil
	}

	return models.Account{}, &errors.ErrAccountNotFound{ID: id}
}

// SelectAvailable picks the least-used available account, records the
// selection (usage count, last used) and persists the collection. It
// returns (nil, nil) when no account is currently eligible.
func (p *Pool) SelectAvailable(ctx context.Context) (*models.Account, error) {
	col, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now()

	var available []*models.Account
	for i := range col.Accounts {
		if col.Accounts[i].Available(now) {
			available = append(available, &col.Accounts[i])
		}
	}
	if len(available) == 0 {
		return nil, nil
	}

	// Least-used first; among equals the never-used come before any used
	// account, then oldest last_used wins.
	sort.SliceStable(available, func(i, j int) bool {
		a, b := available[i], available[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount < b.UsageCount
		}
		if a.LastUsed == nil {
			return b.LastUsed != nil
		}
		if b.LastUsed == nil {
			return false
		}
		return a.LastUsed.Before(*b.LastUsed)
	})

	selected := available[0]
	used := now.UTC()
	selected.UsageCount++
	selected.LastUsed = &used

	if err := p.save(ctx, col); err != nil {
		return nil, err
	}

	snapshot := *selected
	return &snapshot, nil
}

// MarkRateLimited transitions an account to rate_limited. resetAt nil means
// the default cooldown from now.
func (p *Pool) MarkRateLimited(ctx context.Context, id string, resetAt *time.Time) error {
	col, err := p.load(ctx)
	if err != nil {
		return err
	}

	account, ok := col.FindByID(id)
	if !ok {
		return &errors.ErrAccountNotFound{ID: id}
	}

	reset := p.now().Add(p.cooldown).UTC()
	if resetAt != nil {
		reset = resetAt.UTC()
	}

	account.Status = models.StatusRateLimited
	account.RateLimitReset = &reset

	if err := p.save(ctx, col); err != nil {
		return err
	}

	p.logger.WarnWithContext(ctx, "session account rate limited",
		"account_id", id,
		"reset_at", reset.Format(time.RFC3339),
	)
	return nil
}

// MarkInvalid transitions an account to invalid. The transition is terminal:
// only deleting and re-creating the account restores it.
func (p *Pool) MarkInvalid(ctx context.Context, id string) error {
	col, err := p.load(ctx)
	if err != nil {
		return err
	}

	account, ok := col.FindByID(id)
	if !ok {
		return &errors.ErrAccountNotFound{ID: id}
	}

	account.Status = models.StatusInvalid
	account.RateLimitReset = nil

	if err := p.save(ctx, col); err != nil {
		return err
	}

	p.logger.WarnWithContext(ctx, "session account marked invalid", "account_id", id)
	return nil
}

// RecoverExpiredCooldowns flips rate-limited accounts whose cooldown has
// lapsed back to active, returning how many recovered. The collection is
// persisted only when at least one account changed.
func (p *Pool) RecoverExpiredCooldowns(ctx context.Context) (int, error) {
	col, err := p.load(ctx)
	if err != nil {
		return 0, err
	}

	now := p.now()
	recovered := 0
	for i := range col.Accounts {
		a := &col.Accounts[i]
		if a.Status == models.StatusRateLimited && a.RateLimitReset != nil && !now.Before(*a.RateLimitReset) {
			a.Status = models.StatusActive
			a.RateLimitReset = nil
			recovered++
		}
	}

	if recovered == 0 {
		return 0, nil
	}

	if err := p.save(ctx, col); err != nil {
		return 0, err
	}

	p.logger.InfoWithContext(ctx, "rate-limited accounts recovered", "count", recovered)
	return recovered, nil
}

// Stats aggregates the pool state. Rate-limited accounts whose cooldown has
// already lapsed are reported as active even before the recovery sweep runs.
func (p *Pool) Stats(ctx context.Context) (models.PoolStats, error) {
	col, err := p.load(ctx)
	if err != nil {
		return models.PoolStats{}, err
	}

	now := p.now()
	stats := models.PoolStats{Total: len(col.Accounts)}
	for i := range col.Accounts {
		a := &col.Accounts[i]
		stats.TotalUsage += a.UsageCount
		if a.LastUsed != nil && (stats.LastUsed == nil || a.LastUsed.After(*stats.LastUsed)) {
			stats.LastUsed = a.LastUsed
		}
		switch a.EffectiveStatus(now) {
		case models.StatusActive:
			stats.Active++
		case models.StatusInvalid:
			stats.Invalid++
		case models.StatusRateLimited:
			stats.RateLimited++
		}
	}

	return stats, nil
}
