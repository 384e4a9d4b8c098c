package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentdir.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Lifecycle.StaleAfter.Duration != 30*time.Second {
		t.Errorf("stale_after = %v, want 30s", cfg.Lifecycle.StaleAfter.Duration)
	}
	if cfg.Ranking.Weights.Semantic != 0.6 {
		t.Errorf("semantic weight = %v, want 0.6", cfg.Ranking.Weights.Semantic)
	}
	if cfg.Embedding.Provider != "static" {
		t.Errorf("embedding provider = %s, want static", cfg.Embedding.Provider)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9000"
log_level = "DEBUG"

[lifecycle]
stale_after = "1m"
expire_after = "5m"
sweep_interval = "10s"

[ranking.weights]
semantic = 0.5
keyword = 0.3
reputation = 0.2

[limits]
registrations_per_minute = 3
allowed_agent_types = ["assistant", "tool"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Lifecycle.StaleAfter.Duration != time.Minute {
		t.Errorf("stale_after = %v, want 1m", cfg.Lifecycle.StaleAfter.Duration)
	}
	if cfg.Ranking.Weights.Keyword != 0.3 {
		t.Errorf("keyword weight = %v, want 0.3", cfg.Ranking.Weights.Keyword)
	}
	if len(cfg.Limits.AllowedAgentTypes) != 2 {
		t.Errorf("allowed types = %v", cfg.Limits.AllowedAgentTypes)
	}

	// Unspecified values keep their defaults.
	if cfg.Bus.BufferSize != 64 {
		t.Errorf("buffer_size = %d, want default 64", cfg.Bus.BufferSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTDIR_ADDR", ":7070")
	t.Setenv("AGENTDIR_ADMIN_PIN", "998877")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %s, want env override", cfg.Server.Addr)
	}
	if cfg.Auth.AdminPIN != "998877" {
		t.Errorf("admin pin not overridden")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero stale window", "[lifecycle]\nstale_after = \"0s\""},
		{"sweep slower than stale", "[lifecycle]\nsweep_interval = \"2m\""},
		{"negative weight", "[ranking.weights]\nsemantic = -1.0"},
		{"all weights zero", "[ranking.weights]\nsemantic = 0.0\nkeyword = 0.0\nreputation = 0.0"},
		{"unknown provider", "[embedding]\nprovider = \"psychic\""},
		{"openai without key", "[embedding]\nprovider = \"openai\""},
		{"zero buffer", "[bus]\nbuffer_size = 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "[lifecycle]\nstale_after = \"soon\"")); err == nil {
		t.Error("expected parse error for bad duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/agentdir.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}
