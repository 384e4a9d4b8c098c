// Package config loads directory configuration from TOML with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/vinayprograms/agentdir/ranking"
)

// Config is the full directory configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Ranking   RankingConfig   `toml:"ranking"`
	Bus       BusConfig       `toml:"bus"`
	Embedding EmbeddingConfig `toml:"embedding"`
	NATS      NATSConfig      `toml:"nats"`
	Auth      AuthConfig      `toml:"auth"`
	Limits    LimitsConfig    `toml:"limits"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `toml:"addr"`

	// LogLevel is DEBUG, INFO, WARN, or ERROR. Default: INFO
	LogLevel string `toml:"log_level"`
}

// LifecycleConfig holds supervisor timing, all in Go duration syntax.
type LifecycleConfig struct {
	StaleAfter    duration `toml:"stale_after"`
	ExpireAfter   duration `toml:"expire_after"`
	RemoveAfter   duration `toml:"remove_after"`
	SweepInterval duration `toml:"sweep_interval"`
}

// RankingConfig holds scoring weights.
type RankingConfig struct {
	Weights ranking.Weights `toml:"weights"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	// BufferSize is the per-subscriber event buffer. Default: 64
	BufferSize int `toml:"buffer_size"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is "openai" or "static". Default: static
	Provider string `toml:"provider"`

	// APIKey for the openai provider. Overridden by OPENAI_API_KEY.
	APIKey string `toml:"api_key"`

	BaseURL    string   `toml:"base_url"`
	Model      string   `toml:"model"`
	Dimensions int      `toml:"dimensions"`
	Timeout    duration `toml:"timeout"`
}

// NATSConfig holds cross-node settings. Empty URL runs single-node.
type NATSConfig struct {
	URL    string `toml:"url"`
	Bucket string `toml:"bucket"`
	NodeID string `toml:"node_id"`
}

// AuthConfig holds the static credential table.
type AuthConfig struct {
	// AdminPIN is the second factor for destructive operations.
	// Overridden by AGENTDIR_ADMIN_PIN.
	AdminPIN string `toml:"admin_pin"`

	// AdminTokens are tokens resolving to the admin tier.
	AdminTokens []string `toml:"admin_tokens"`
}

// LimitsConfig bounds registration rates and record validation.
type LimitsConfig struct {
	// RegistrationsPerMinute per caller. Default: 10
	RegistrationsPerMinute int `toml:"registrations_per_minute"`

	// AllowedAgentTypes is the agent_type allow-list. Empty means any.
	AllowedAgentTypes []string `toml:"allowed_agent_types"`

	// MinPublicKeyLen is the minimum accepted public key length.
	MinPublicKeyLen int `toml:"min_public_key_len"`
}

// TelemetryConfig holds OTLP export settings.
type TelemetryConfig struct {
	// Enabled turns span export on. Default: false
	Enabled bool `toml:"enabled"`

	// Endpoint is the OTLP endpoint. Overridden by
	// OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string `toml:"endpoint"`

	// Protocol is "grpc" or "http". Default: grpc
	Protocol string `toml:"protocol"`

	Insecure bool `toml:"insecure"`
}

// duration wraps time.Duration for TOML decoding of strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", LogLevel: "INFO"},
		Lifecycle: LifecycleConfig{
			StaleAfter:    duration{30 * time.Second},
			ExpireAfter:   duration{90 * time.Second},
			RemoveAfter:   duration{60 * time.Second},
			SweepInterval: duration{5 * time.Second},
		},
		Ranking:   RankingConfig{Weights: ranking.DefaultWeights()},
		Bus:       BusConfig{BufferSize: 64},
		Embedding: EmbeddingConfig{Provider: "static", Dimensions: 64, Timeout: duration{3 * time.Second}},
		NATS:      NATSConfig{Bucket: "agent-directory"},
		Limits:    LimitsConfig{RegistrationsPerMinute: 10, MinPublicKeyLen: 32},
		Telemetry: TelemetryConfig{Protocol: "grpc"},
	}
}

// Load reads a TOML file over the defaults and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets deployment secrets stay out of the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENTDIR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTDIR_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("AGENTDIR_ADMIN_PIN"); v != "" {
		cfg.Auth.AdminPIN = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("AGENTDIR_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Lifecycle.StaleAfter.Duration <= 0 || c.Lifecycle.ExpireAfter.Duration <= 0 {
		return fmt.Errorf("lifecycle windows must be positive")
	}
	if c.Lifecycle.SweepInterval.Duration <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.Lifecycle.SweepInterval.Duration > c.Lifecycle.StaleAfter.Duration {
		return fmt.Errorf("sweep_interval %v exceeds stale_after %v", c.Lifecycle.SweepInterval.Duration, c.Lifecycle.StaleAfter.Duration)
	}
	if c.Bus.BufferSize <= 0 {
		return fmt.Errorf("bus buffer_size must be positive")
	}
	w := c.Ranking.Weights
	if w.Semantic < 0 || w.Keyword < 0 || w.Reputation < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if w.Semantic+w.Keyword+w.Reputation == 0 {
		return fmt.Errorf("at least one ranking weight must be positive")
	}
	switch c.Embedding.Provider {
	case "openai", "static":
	default:
		return fmt.Errorf("unknown embedding provider %q (want openai or static)", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding provider openai requires an api key")
	}
	return nil
}
