package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Server            ServerConfig             `yaml:"server"`
	Auth              AuthConfig               `yaml:"auth"`
	Agent             AgentConfig              `yaml:"agent"`
	IdentityProviders []IdentityProviderConfig `yaml:"identity_providers"`
	Store             StoreConfig              `yaml:"store"`
	Audit             AuditConfig              `yaml:"audit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig configures the bearer-credential side.
type AuthConfig struct {
	// SigningKey signs issued bearer tokens. Required; the server refuses
	// to start without it.
	SigningKey string `yaml:"signing_key"`

	// TokenTTL is the lifetime of issued bearer credentials.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// ElevatedExpr is the expression deciding elevated (super admin)
	// access. Empty uses the built-in legacy mail-domain rule.
	ElevatedExpr string `yaml:"elevated_expr"`

	// FederatedProvider names the identity provider used for the
	// federated mobile login route. Empty disables that route.
	FederatedProvider string `yaml:"federated_provider"`
}

// AgentConfig configures the external mobile-assistant integration.
type AgentConfig struct {
	// SessionTTL is the lifetime of issued agent sessions.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// APIKeyHeader is the header name the platform puts the channel
	// secret in. Configurable because it is set in the platform's
	// developer console, not by us.
	APIKeyHeader string `yaml:"api_key_header"`

	// APISecret is the channel shared secret. Required when the agent
	// message channel is enabled.
	APISecret string `yaml:"api_secret"`

	// Enabled turns the agent routes on.
	Enabled bool `yaml:"enabled"`

	Platform PlatformConfig `yaml:"platform"`
}

// PlatformConfig is the OAuth client for the platform's account service.
type PlatformConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri"`
	TokenURL     string        `yaml:"token_url"`
	UserInfoURL  string        `yaml:"user_info_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// IdentityProviderConfig holds configuration for one federated identity
// provider.
type IdentityProviderConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "google", "static"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

type StoreConfig struct {
	Type string `yaml:"type"` // "memory" or "postgres"
	DSN  string `yaml:"dsn"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

const (
	DefaultTokenTTL        = 24 * time.Hour
	DefaultAgentSessionTTL = 168 * time.Hour
	DefaultAPIKeyHeader    = "X-Agent-Api-Key"
)

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Agent.SessionTTL <= 0 {
		c.Agent.SessionTTL = DefaultAgentSessionTTL
	}
	if c.Agent.APIKeyHeader == "" {
		c.Agent.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
}

func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}

	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	validProviders := make(map[string]struct{})
	for idx, p := range c.IdentityProviders {
		if p.Name == "" {
			return fmt.Errorf("identity provider at index %d has empty name", idx)
		}
		validProviders[p.Name] = struct{}{}
	}
	if c.Auth.FederatedProvider != "" {
		if _, ok := validProviders[c.Auth.FederatedProvider]; !ok {
			return fmt.Errorf("auth.federated_provider %q is not a configured identity provider",
				c.Auth.FederatedProvider)
		}
	}

	if c.Agent.Enabled {
		if c.Agent.APISecret == "" {
			return fmt.Errorf("agent.api_secret is required when the agent channel is enabled")
		}
		if c.Agent.Platform.ClientID == "" || c.Agent.Platform.ClientSecret == "" {
			return fmt.Errorf("agent.platform.client_id and client_secret are required when the agent channel is enabled")
		}
	}

	return nil
}
