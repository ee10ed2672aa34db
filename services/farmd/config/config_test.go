package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "farmd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :7000 "
auth:
  hmac_secret: " `+testSecret+` "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":7000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.DataDir != defaultDataDir || cfg.FarmingConfig != defaultFarmingConfig {
		t.Fatalf("unexpected paths: %q %q", cfg.DataDir, cfg.FarmingConfig)
	}
	if cfg.Storage != "leveldb" {
		t.Fatalf("unexpected storage backend: %q", cfg.Storage)
	}
	if cfg.Events.DSN != defaultEventsDSN {
		t.Fatalf("unexpected events dsn: %q", cfg.Events.DSN)
	}
	if cfg.Auth.HMACSecret != testSecret || cfg.Auth.AdminScope != "farm:admin" {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.ReadTimeout != defaultReadTimeout || cfg.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("unexpected timeouts: %s %s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.Webhook.Enabled() {
		t.Fatalf("webhook should be disabled by default")
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "`+testSecret+`"
  clock_skew: 30s
webhook:
  url: https://hooks.example/farm
  secret: s3cret
  min_backoff: 1s
  max_backoff: 1m
rate_limit:
  requests_per_minute: 120
  burst: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.ClockSkew != 30*time.Second {
		t.Fatalf("unexpected clock skew %s", cfg.Auth.ClockSkew)
	}
	if !cfg.Webhook.Enabled() || cfg.Webhook.MaxBackoff != time.Minute {
		t.Fatalf("unexpected webhook config %+v", cfg.Webhook)
	}
	if cfg.RateLimit.RequestsPerMinute != 120 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
listen: ":7000"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "hmac_secret") {
		t.Fatalf("expected hmac_secret error, got %v", err)
	}
	path = writeConfig(t, `
auth:
  hmac_secret: short
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestLoadConfigRejectsWebhookWithoutSecret(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "`+testSecret+`"
webhook:
  url: https://hooks.example/farm
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "webhook") {
		t.Fatalf("expected webhook error, got %v", err)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "`+testSecret+`"
listen_addr: ":1"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigStorageBackend(t *testing.T) {
	path := writeConfig(t, `
storage: " Bolt "
auth:
  hmac_secret: "`+testSecret+`"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage != "bolt" {
		t.Fatalf("unexpected storage backend: %q", cfg.Storage)
	}

	path = writeConfig(t, `
storage: rocksdb
auth:
  hmac_secret: "`+testSecret+`"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
}
