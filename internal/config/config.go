package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Storage backend types.
const (
	StorageTypePostgres = "postgres"
	StorageTypeMemory   = "memory"
)

// Config contains all startup configuration. Required inputs that are
// absent make startup fail; nothing is deferred to a runtime error.
type Config struct {
	LogLevel int `env:"LOG_LEVEL" envDefault:"0"`

	Google   Google   `envPrefix:"GOOGLE_"`
	Server   Server   `envPrefix:"MCP_"`
	Admin    Admin    `envPrefix:"ADMIN_"`
	Database Database `envPrefix:"DATABASE_"`
	Metrics  Metrics  `envPrefix:"METRICS_"`
}

// Google contains the OAuth client registration issued by the provider.
type Google struct {
	ClientID     string `env:"CLIENT_ID,notEmpty"`
	ClientSecret string `env:"CLIENT_SECRET,notEmpty"`
	RedirectURI  string `env:"REDIRECT_URI" envDefault:"http://localhost:5000/oauth2callback"`
}

// Server contains the protocol-serving surface parameters.
type Server struct {
	// APIKey is the pre-shared key the gateway guard compares inbound
	// requests against. Only the HTTP transport consults the guard, so
	// it is validated by ValidateGuard rather than at parse time.
	APIKey   string `env:"SERVER_API_KEY"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`
}

// Admin contains the enrollment surface parameters.
type Admin struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":5000"`
	Username      string `env:"USERNAME" envDefault:"admin"`
	Password      string `env:"PASSWORD,notEmpty"`
	SessionSecret string `env:"SESSION_SECRET,notEmpty"`
}

// Database contains datastore parameters. DSN is validated by the
// storage layer; StorageType memory skips the datastore entirely.
type Database struct {
	DSN         string `env:"DSN"`
	StorageType string `env:"STORAGE_TYPE" envDefault:"postgres"`
}

// Metrics contains the metrics server parameters.
type Metrics struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Addr    string `env:"ADDR" envDefault:":9090"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateGuard checks the parameters the guarded HTTP protocol
// surface needs. The stdio transport never consults the guard, so a
// stdio-only deployment runs without a server key.
func (c *Config) ValidateGuard() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("MCP_SERVER_API_KEY is required for the streamable-http transport")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Database.StorageType {
	case StorageTypePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for postgres storage")
		}
	case StorageTypeMemory:
		// Credentials will not survive a restart; allowed for
		// development only.
	default:
		return fmt.Errorf("unsupported storage type %q (supported: postgres, memory)", c.Database.StorageType)
	}
	return nil
}
