package config

import (
	"os"
	"strconv"
)

// FromEnv overlays STRAND_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("STRAND_CLAIM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ClaimTimeoutMs = n
		}
	}
	if v := os.Getenv("STRAND_RECORD_MAX_FIELDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecordLimits.MaxFields = n
		}
	}
	if v := os.Getenv("STRAND_RECORD_KEY_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecordLimits.KeyMaxBytes = n
		}
	}
	if v := os.Getenv("STRAND_RECORD_VALUE_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecordLimits.ValueMaxBytes = n
		}
	}
	if v := os.Getenv("STRAND_RETENTION_MAX_LEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Retention.MaxLen = n
		}
	}
	if v := os.Getenv("STRAND_RETENTION_AGE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Retention.AgeMs = n
		}
	}
	if v := os.Getenv("STRAND_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.API.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("STRAND_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.API.Burst = n
		}
	}
}
