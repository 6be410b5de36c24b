package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatalf("expected DecodeFile to error on a missing file")
	}
	_ = cfg
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".claudeswarm.toml")
	contents := `
[discovery]
stale_threshold_seconds = 120

[messaging]
rate_limit_max_messages = 5
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discovery.StaleThresholdSeconds != 120 {
		t.Fatalf("expected overridden stale threshold, got %d", cfg.Discovery.StaleThresholdSeconds)
	}
	if cfg.Messaging.RateLimitMaxMessages != 5 {
		t.Fatalf("expected overridden rate limit, got %d", cfg.Messaging.RateLimitMaxMessages)
	}
	if cfg.Messaging.RateLimitWindowSeconds != Default().Messaging.RateLimitWindowSeconds {
		t.Fatalf("expected unset window to keep its default, got %d", cfg.Messaging.RateLimitWindowSeconds)
	}
}

func TestValidateRejectsOutOfBoundsRateLimit(t *testing.T) {
	cfg := Default()
	cfg.Messaging.RateLimitMaxMessages = 5000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected out-of-bounds rate limit to fail validation")
	}
}
