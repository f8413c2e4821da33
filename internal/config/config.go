// Package config loads and validates app config from the environment using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Port is the HTTP listen port (default 8080).
	Port string `mapstructure:"PORT"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Supabase Postgres connection string.
	DatabaseURL string `mapstructure:"DB_CONNECTION_STRING"`
	// SupabaseURL is the project URL; informational, used in logs and health output.
	SupabaseURL string `mapstructure:"SUPABASE_URL"`
	// JWTSecret verifies Supabase access tokens and signs OAuth state.
	JWTSecret string `mapstructure:"SUPABASE_JWT_SECRET"`

	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`

	GHLClientID     string `mapstructure:"GHL_MARKETPLACE_CLIENT_ID"`
	GHLClientSecret string `mapstructure:"GHL_MARKETPLACE_CLIENT_SECRET"`
	GHLRedirectURI  string `mapstructure:"GHL_REDIRECT_URI"`
	GHLAPIBaseURL   string `mapstructure:"GHL_API_BASE_URL"`
	GHLAPIVersion   string `mapstructure:"GHL_API_VERSION"`
	GHLAuthURL      string `mapstructure:"GHL_AUTH_URL"`
	GHLTokenURL     string `mapstructure:"GHL_TOKEN_URL"`
	// GHLScopes is a space separated scope list requested during install.
	GHLScopes string `mapstructure:"GHL_SCOPES"`
	// GHLWebhookSecret, when set, must be sent by GHL as X-Webhook-Secret or ?secret=.
	GHLWebhookSecret string `mapstructure:"GHL_WEBHOOK_SECRET"`

	// EncryptionKey is a 32-byte key (hex or base64) sealing agency OpenAI keys.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	// DashboardURL is where the OAuth callback redirects the browser.
	DashboardURL string `mapstructure:"DASHBOARD_URL"`
	// FreeTierExtractionLimit applies to agencies without a subscription.
	FreeTierExtractionLimit int `mapstructure:"FREE_TIER_EXTRACTION_LIMIT"`
	// HTTPTimeout bounds every outbound GHL/OpenAI call (e.g. "60s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`
	// CORSAllowedOrigins is a comma-separated list; "*" allows any origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// TokenRefreshInterval is how often expiring GHL tokens are refreshed; "0" disables it.
	TokenRefreshInterval string `mapstructure:"TOKEN_REFRESH_INTERVAL"`
}

var keys = []string{
	"PORT", "APP_ENV", "LOG_LEVEL",
	"DB_CONNECTION_STRING", "SUPABASE_URL", "SUPABASE_JWT_SECRET",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"GHL_MARKETPLACE_CLIENT_ID", "GHL_MARKETPLACE_CLIENT_SECRET", "GHL_REDIRECT_URI",
	"GHL_API_BASE_URL", "GHL_API_VERSION", "GHL_AUTH_URL", "GHL_TOKEN_URL", "GHL_SCOPES",
	"GHL_WEBHOOK_SECRET", "ENCRYPTION_KEY", "DASHBOARD_URL",
	"FREE_TIER_EXTRACTION_LIMIT", "HTTP_TIMEOUT", "CORS_ALLOWED_ORIGINS", "TOKEN_REFRESH_INTERVAL",
}

// Load builds and validates Config from the environment via Viper.
// Callers load .env beforehand (godotenv); env vars always win.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GHL_API_BASE_URL", "https://services.leadconnectorhq.com")
	v.SetDefault("GHL_API_VERSION", "2021-07-28")
	v.SetDefault("GHL_AUTH_URL", "https://marketplace.gohighlevel.com/oauth/chooselocation")
	v.SetDefault("GHL_TOKEN_URL", "https://services.leadconnectorhq.com/oauth/token")
	v.SetDefault("GHL_SCOPES", "contacts.readonly contacts.write conversations.readonly conversations/message.readonly locations.readonly locations/customFields.readonly")
	v.SetDefault("DASHBOARD_URL", "http://localhost:5173")
	v.SetDefault("FREE_TIER_EXTRACTION_LIMIT", 50)
	v.SetDefault("HTTP_TIMEOUT", "60s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TOKEN_REFRESH_INTERVAL", "2m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Port == "" {
		return nil, errors.New("config: PORT must be set")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DB_CONNECTION_STRING is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: SUPABASE_JWT_SECRET is required")
	}
	if cfg.FreeTierExtractionLimit < 0 {
		return nil, errors.New("config: FREE_TIER_EXTRACTION_LIMIT must not be negative")
	}
	if cfg.IsProduction() && cfg.EncryptionKey == "" {
		return nil, errors.New("config: ENCRYPTION_KEY is required when APP_ENV=production")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Timeout parses HTTPTimeout. Returns 60s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// RefreshInterval parses TokenRefreshInterval. Zero or invalid disables the refresher.
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.TokenRefreshInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Scopes splits GHLScopes on whitespace.
func (c *Config) Scopes() []string {
	return strings.Fields(c.GHLScopes)
}

// AllowedOrigins returns CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	if c == nil || c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
