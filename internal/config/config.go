package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// ClaimTimeoutMs is how long a claimed entry may sit unacknowledged
	// before other consumers in the group may reclaim it.
	ClaimTimeoutMs int64 `json:"claimTimeoutMs" yaml:"claimTimeoutMs"`
	// RecordLimits bound accepted record shapes at append time.
	RecordLimits RecordLimits `json:"recordLimits" yaml:"recordLimits"`
	// Retention provides topic-level retention defaults; per-topic config
	// overrides them.
	Retention Retention `json:"retention" yaml:"retention"`
	// API configures the HTTP surface guard.
	API APILimits `json:"api" yaml:"api"`
}

// RecordLimits bounds record fields accepted by append.
type RecordLimits struct {
	MaxFields     int `json:"maxFields" yaml:"maxFields"`
	KeyMaxBytes   int `json:"keyMaxBytes" yaml:"keyMaxBytes"`
	ValueMaxBytes int `json:"valueMaxBytes" yaml:"valueMaxBytes"`
}

// Retention captures default trim policy applied to topics without one.
type Retention struct {
	MaxLen int64 `json:"maxLen" yaml:"maxLen"`
	AgeMs  int64 `json:"ageMs" yaml:"ageMs"`
}

// APILimits configures the token-bucket guard on mutating HTTP endpoints.
type APILimits struct {
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// ClaimTimeout returns the reclaim window as a duration.
func (c Config) ClaimTimeout() time.Duration {
	return time.Duration(c.ClaimTimeoutMs) * time.Millisecond
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ClaimTimeoutMs: 30_000,
		RecordLimits: RecordLimits{
			MaxFields:     128,
			KeyMaxBytes:   64 << 10,
			ValueMaxBytes: 1 << 20,
		},
		API: APILimits{
			RequestsPerSecond: 5000,
			Burst:             10000,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
