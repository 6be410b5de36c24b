// Package config loads and validates .claudeswarm.toml, the project-level
// configuration file consumed by cmd/swarmctl. The core packages never
// parse TOML themselves; they accept an already-validated Config value,
// per spec §1's explicit non-goal for config-file parsing in the core.
//
// Grounded on the teacher's internal/config package's TOML-tagged struct
// idiom (internal/config/hooks_test.go decodes registry.toml the same way)
// using github.com/BurntSushi/toml.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/claude-swarm/swarm/internal/ack"
	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/filelock"
	"github.com/claude-swarm/swarm/internal/messaging"
	"github.com/claude-swarm/swarm/internal/validate"
)

// Config is the validated shape of .claudeswarm.toml.
type Config struct {
	Discovery DiscoverySection `toml:"discovery"`
	Locks     LocksSection     `toml:"locks"`
	Messaging MessagingSection `toml:"messaging"`
	Ack       AckSection       `toml:"ack"`
	Security  SecuritySection  `toml:"security"`
}

// DiscoverySection configures the discovery registry.
type DiscoverySection struct {
	StaleThresholdSeconds int `toml:"stale_threshold_seconds"`
}

// LocksSection configures the file-lock manager.
type LocksSection struct {
	StaleTimeoutSeconds int `toml:"stale_timeout_seconds"`
}

// MessagingSection configures the messaging core's rate limiter.
type MessagingSection struct {
	RateLimitMaxMessages   int `toml:"rate_limit_max_messages"`
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`
}

// AckSection configures the ack/retry engine.
type AckSection struct {
	FirstRetryAfterSeconds int `toml:"first_retry_after_seconds"`
}

// SecuritySection configures the optional local shared secret used to HMAC
// messages, per spec §1's non-goal carve-out ("a local shared secret is
// supported for message HMAC but key distribution is out of scope").
type SecuritySection struct {
	HMACSecret string `toml:"hmac_secret"`
}

// Default returns the configuration used when no .claudeswarm.toml is
// present; its values match the defaults each package already applies on
// its own when handed a zero Duration.
func Default() Config {
	return Config{
		Discovery: DiscoverySection{StaleThresholdSeconds: int(discovery.DefaultStaleThreshold.Seconds())},
		Locks:     LocksSection{StaleTimeoutSeconds: int(filelock.DefaultStaleTimeout.Seconds())},
		Messaging: MessagingSection{
			RateLimitMaxMessages:   messaging.DefaultRateLimit.MaxMessages,
			RateLimitWindowSeconds: int(messaging.DefaultRateLimit.Window.Seconds()),
		},
		Ack: AckSection{FirstRetryAfterSeconds: ack.BackoffSeconds[0]},
	}
}

// Load decodes and validates path, applying Default() for any zero-valued
// field first so a partial file only overrides what it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces spec §4.C's numeric bounds on every configurable
// field.
func (c Config) Validate() error {
	if err := boundsCheck("discovery.stale_threshold_seconds", c.Discovery.StaleThresholdSeconds,
		int(discovery.MinStaleThreshold.Seconds()), int(discovery.MaxStaleThreshold.Seconds())); err != nil {
		return err
	}
	if err := validate.Timeout(c.Locks.StaleTimeoutSeconds); err != nil {
		return err
	}
	if err := validate.RateLimit(c.Messaging.RateLimitMaxMessages, c.Messaging.RateLimitWindowSeconds); err != nil {
		return err
	}
	if err := validate.Timeout(c.Ack.FirstRetryAfterSeconds); err != nil {
		return err
	}
	return nil
}

func boundsCheck(field string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s: %d out of bounds [%d, %d]", field, v, min, max)
	}
	return nil
}

// StaleThreshold returns the discovery stale threshold as a Duration.
func (c Config) StaleThreshold() time.Duration {
	return time.Duration(c.Discovery.StaleThresholdSeconds) * time.Second
}

// LockStaleTimeout returns the lock manager's stale timeout as a Duration.
func (c Config) LockStaleTimeout() time.Duration {
	return time.Duration(c.Locks.StaleTimeoutSeconds) * time.Second
}

// RateLimit returns the messaging core's configured rate limit.
func (c Config) RateLimit() messaging.RateLimit {
	return messaging.RateLimit{
		MaxMessages: c.Messaging.RateLimitMaxMessages,
		Window:      time.Duration(c.Messaging.RateLimitWindowSeconds) * time.Second,
	}
}

// FirstRetryAfter returns the ack engine's configured first-retry delay.
func (c Config) FirstRetryAfter() time.Duration {
	return time.Duration(c.Ack.FirstRetryAfterSeconds) * time.Second
}
