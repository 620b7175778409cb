package config

import (
	"fmt"
	"os"
)

// Config holds the application configuration. All secrets live only in
// this process: they are loaded once at startup and never serialized or
// sent across the trust boundary. Rotating JWT_SECRET invalidates every
// outstanding session token; that is the documented trade-off of stateless
// tokens.
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string
	ClaimSecret string
	AdminSecret string
	DevMode     bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    "8080", // default port
		DevMode: os.Getenv("DEV_MODE") == "true",
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && !cfg.DevMode {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.ClaimSecret = os.Getenv("CLAIM_SECRET")
	if cfg.ClaimSecret == "" {
		return nil, fmt.Errorf("CLAIM_SECRET environment variable is required")
	}
	// Session tokens and claim envelopes must never share a key: a leaked
	// or rotated session secret must not let anyone forge task claims.
	if cfg.ClaimSecret == cfg.JWTSecret {
		return nil, fmt.Errorf("CLAIM_SECRET must differ from JWT_SECRET")
	}

	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")
	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET environment variable is required")
	}

	return cfg, nil
}
