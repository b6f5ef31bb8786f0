package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	ControlPlane ControlPlaneConfig
	Bulk         BulkConfig
	Auth         AuthConfig
	OIDC         OIDCConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/fleet-console.db"`
}

// ControlPlaneConfig holds fleet control-plane API configuration. The
// client authenticates with either a static API token or the OAuth2
// client-credentials grant; when neither base URL is set the service falls
// back to the offline demo shim.
type ControlPlaneConfig struct {
	BaseURL     string `env:"CONTROL_PLANE_URL"`
	APIToken    string `env:"CONTROL_PLANE_TOKEN"`
	DemoFixture string `env:"DEMO_FIXTURE"` // Path to a YAML fixture for the offline shim

	OAuthTokenURL     string `env:"CONTROL_PLANE_OAUTH_TOKEN_URL"`
	OAuthClientID     string `env:"CONTROL_PLANE_OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"CONTROL_PLANE_OAUTH_CLIENT_SECRET"`
}

// UseOAuth returns true if the control-plane client should authenticate
// via client credentials instead of a static token.
func (c *ControlPlaneConfig) UseOAuth() bool {
	return c.OAuthTokenURL != ""
}

// BulkConfig holds bulk-operation orchestrator configuration.
type BulkConfig struct {
	PollInterval time.Duration `env:"BULK_POLL_INTERVAL" envDefault:"1s"`
	MaxPolls     int           `env:"BULK_MAX_POLLS" envDefault:"300"`
}

// AuthConfig holds API key authentication configuration.
type AuthConfig struct {
	BootstrapAPIKey string `env:"BOOTSTRAP_API_KEY"`
}

// OIDCConfig holds OIDC bearer-token verification configuration for
// dashboard sessions. Only token verification is done here; the dashboard
// obtains tokens through its own identity provider flow.
type OIDCConfig struct {
	Enabled   bool   `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL string `env:"OIDC_ISSUER_URL"`
	ClientID  string `env:"OIDC_CLIENT_ID"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.ControlPlane); err != nil {
		return nil, fmt.Errorf("parsing control-plane config: %w", err)
	}
	if err := env.Parse(&cfg.Bulk); err != nil {
		return nil, fmt.Errorf("parsing bulk config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.OIDC); err != nil {
		return nil, fmt.Errorf("parsing oidc config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ControlPlane.BaseURL != "" {
		if c.ControlPlane.UseOAuth() {
			if c.ControlPlane.OAuthClientID == "" || c.ControlPlane.OAuthClientSecret == "" {
				return fmt.Errorf("CONTROL_PLANE_OAUTH_CLIENT_ID and CONTROL_PLANE_OAUTH_CLIENT_SECRET are required when CONTROL_PLANE_OAUTH_TOKEN_URL is set")
			}
		} else if c.ControlPlane.APIToken == "" {
			return fmt.Errorf("CONTROL_PLANE_TOKEN is required when CONTROL_PLANE_URL is set (or configure OAuth client credentials)")
		}
	}

	if c.Bulk.PollInterval <= 0 {
		return fmt.Errorf("BULK_POLL_INTERVAL must be positive")
	}
	if c.Bulk.MaxPolls <= 0 {
		return fmt.Errorf("BULK_MAX_POLLS must be positive")
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
	}

	return nil
}

// UseDemoShim returns true if no live control-plane is configured and the
// service should fall back to the offline demo dataset.
func (c *Config) UseDemoShim() bool {
	return c.ControlPlane.BaseURL == ""
}
