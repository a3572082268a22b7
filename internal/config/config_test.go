package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ClaimTimeoutMs != 30_000 {
		t.Fatalf("claim timeout default")
	}
	if cfg.RecordLimits.MaxFields != 128 {
		t.Fatalf("max fields default")
	}
	if cfg.API.Burst == 0 {
		t.Fatalf("api burst default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "strand.json")
	data := []byte(`{"claimTimeoutMs":5000,"recordLimits":{"maxFields":16,"keyMaxBytes":256,"valueMaxBytes":1024}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClaimTimeoutMs != 5000 {
		t.Fatalf("expected 5000, got %d", cfg.ClaimTimeoutMs)
	}
	if cfg.RecordLimits.MaxFields != 16 {
		t.Fatalf("expected 16, got %d", cfg.RecordLimits.MaxFields)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "strand.yaml")
	data := []byte("claimTimeoutMs: 7500\nretention:\n  maxLen: 1000\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClaimTimeoutMs != 7500 {
		t.Fatalf("expected 7500, got %d", cfg.ClaimTimeoutMs)
	}
	if cfg.Retention.MaxLen != 1000 {
		t.Fatalf("expected 1000, got %d", cfg.Retention.MaxLen)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("STRAND_CLAIM_TIMEOUT_MS", "12000")
	os.Setenv("STRAND_API_RPS", "100")
	t.Cleanup(func() {
		os.Unsetenv("STRAND_CLAIM_TIMEOUT_MS")
		os.Unsetenv("STRAND_API_RPS")
	})
	FromEnv(&cfg)
	if cfg.ClaimTimeoutMs != 12000 {
		t.Fatalf("env override claim timeout")
	}
	if cfg.API.RequestsPerSecond != 100 {
		t.Fatalf("env override rps")
	}
}
