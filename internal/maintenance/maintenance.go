// Package maintenance runs the periodic background jobs: OAuth token
// refresh and rate-limit cooldown recovery. Both share the durable store
// with the request path and carry the same read-modify-write semantics.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/metrics"
	"github.com/llmrelay/llmrelay/internal/notify"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/pool"
)

// Runner owns the background tickers.
type Runner struct {
	cfg      config.MaintenanceConfig
	tokens   *oauth.Lifecycle
	pool     *pool.Pool
	logger   *logging.Logger
	metrics  *metrics.Metrics
	notifier *notify.Notifier
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithMetrics enables maintenance metric recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithNotifier enables operator alerts for refresh failures.
func WithNotifier(n *notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// New creates a maintenance Runner.
func New(cfg config.MaintenanceConfig, tokens *oauth.Lifecycle, p *pool.Pool, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		tokens:   tokens,
		pool:     p,
		logger:   logging.NewLogger(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the refresh and recovery tickers.
func (r *Runner) Start() {
	if !r.cfg.Enabled {
		return
	}

	r.wg.Add(2)
	go r.loop(r.cfg.RefreshInterval, r.refreshToken)
	go r.loop(r.cfg.RecoveryInterval, r.recoverCooldowns)
}

// Stop halts the tickers and waits for in-flight sweeps to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

func (r *Runner) loop(interval time.Duration, job func(context.Context)) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			job(ctx)
			cancel()
		}
	}
}

// refreshToken renews the stored OAuth token. Failures are logged and left
// for the next tick; the stale record stays in place so request traffic
// falls back to session mode naturally.
func (r *Runner) refreshToken(ctx context.Context) {
	_, err := r.tokens.Refresh(ctx)
	if err != nil {
		r.logger.Warn("scheduled token refresh failed", "error", err.Error())
		if r.metrics != nil {
			r.metrics.RecordTokenRefresh("failure")
		}
		r.notifier.Send("*llmrelay*: scheduled OAuth token refresh failed: " + err.Error())
		return
	}

	r.logger.Info("scheduled token refresh succeeded")
	if r.metrics != nil {
		r.metrics.RecordTokenRefresh("success")
	}
}

// recoverCooldowns sweeps the pool for lapsed rate-limit cooldowns and
// refreshes the pool composition gauges.
func (r *Runner) recoverCooldowns(ctx context.Context) {
	recovered, err := r.pool.RecoverExpiredCooldowns(ctx)
	if err != nil {
		r.logger.Warn("cooldown recovery sweep failed", "error", err.Error())
		return
	}
	if recovered > 0 && r.metrics != nil {
		r.metrics.RecordRecoveries(recovered)
	}

	if r.metrics != nil {
		stats, err := r.pool.Stats(ctx)
		if err != nil {
			return
		}
		r.metrics.SetPoolAccounts("active", stats.Active)
		r.metrics.SetPoolAccounts("invalid", stats.Invalid)
		r.metrics.SetPoolAccounts("rate_limited", stats.RateLimited)
	}
}
