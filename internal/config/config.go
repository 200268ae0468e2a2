package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Server      ServerConfig      `yaml:"server"`
	API         APIConfig         `yaml:"api"`
	Store       StoreConfig       `yaml:"store"`
	OAuth       OAuthConfig       `yaml:"oauth"`
	Session     SessionConfig     `yaml:"session"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Telegram    TelegramConfig    `yaml:"telegram"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// AuthConfig protects the management endpoints with static API keys.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// RateLimitConfig contains per-IP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// StoreConfig contains durable store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OAuthConfig contains the provider OAuth endpoints and client identity.
type OAuthConfig struct {
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	RedirectURI  string `yaml:"redirect_uri"`
	Scopes       string `yaml:"scopes"`
}

// SessionConfig contains the cookie-backed session pool policy.
type SessionConfig struct {
	AppendMessageURL  string        `yaml:"append_message_url"`
	Origin            string        `yaml:"origin"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// UpstreamConfig contains the primary (bearer-token) provider endpoint.
type UpstreamConfig struct {
	MessagesURL     string        `yaml:"messages_url"`
	ProtocolVersion string        `yaml:"protocol_version"`
	FeatureFlags    string        `yaml:"feature_flags"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// MaintenanceConfig contains the periodic background job configuration.
type MaintenanceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

// TelegramConfig contains operator notification configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be in range 1-65535, got %d", c.Server.HTTPPort)
	}
	if c.Session.MaxAttempts <= 0 {
		return fmt.Errorf("session.max_attempts must be positive, got %d", c.Session.MaxAttempts)
	}
	if c.Session.RateLimitCooldown <= 0 {
		return fmt.Errorf("session.rate_limit_cooldown must be positive, got %s", c.Session.RateLimitCooldown)
	}
	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return fmt.Errorf("api.auth.enabled requires at least one api key")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.enabled requires telegram.bot_token")
	}
	return nil
}

// applyDefaults fills in defaults for anything the file left unset.
func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8402
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/llmrelay.db"
	}
	if c.API.Auth.HeaderName == "" {
		c.API.Auth.HeaderName = "X-API-Key"
	}
	if c.API.RateLimit.RequestsPerMinute == 0 {
		c.API.RateLimit.RequestsPerMinute = 600
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 60
	}
	if c.OAuth.AuthorizeURL == "" {
		c.OAuth.AuthorizeURL = "https://claude.ai/oauth/authorize"
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = "https://console.anthropic.com/v1/oauth/token"
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = "https://console.anthropic.com/oauth/code/callback"
	}
	if c.OAuth.Scopes == "" {
		c.OAuth.Scopes = "org:create_api_key user:profile user:inference"
	}
	if c.Session.AppendMessageURL == "" {
		c.Session.AppendMessageURL = "https://claude.ai/api/append_message"
	}
	if c.Session.Origin == "" {
		c.Session.Origin = "https://claude.ai"
	}
	if c.Session.RateLimitCooldown == 0 {
		c.Session.RateLimitCooldown = time.Hour
	}
	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = 3
	}
	if c.Session.RequestTimeout == 0 {
		c.Session.RequestTimeout = 30 * time.Second
	}
	if c.Upstream.MessagesURL == "" {
		c.Upstream.MessagesURL = "https://api.anthropic.com/v1/messages"
	}
	if c.Upstream.ProtocolVersion == "" {
		c.Upstream.ProtocolVersion = "2023-06-01"
	}
	if c.Upstream.FeatureFlags == "" {
		c.Upstream.FeatureFlags = "oauth-2025-04-20,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14"
	}
	if c.Upstream.RequestTimeout == 0 {
		c.Upstream.RequestTimeout = 30 * time.Second
	}
	if c.Maintenance.RefreshInterval == 0 {
		c.Maintenance.RefreshInterval = time.Hour
	}
	if c.Maintenance.RecoveryInterval == 0 {
		c.Maintenance.RecoveryInterval = 5 * time.Minute
	}
}

// Default returns a configuration with all defaults applied, suitable for
// zero-config operation.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}
