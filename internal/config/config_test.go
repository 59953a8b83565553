package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load without file must fall back to defaults: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Cache.Kind != "memory" {
		t.Fatalf("cache kind = %q", c.Cache.Kind)
	}
	if c.Cache.RecordLimit != 100 {
		t.Fatalf("record limit = %d", c.Cache.RecordLimit)
	}
	if c.Clients.EarliestSaneAccessTime != 1199145600000 {
		t.Fatalf("earliest sane access time = %d", c.Clients.EarliestSaneAccessTime)
	}
	if got := Dur(c.Cache.Timeout); got != time.Second {
		t.Fatalf("timeout = %v", got)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9999"
cache:
  kind: redis
  record_limit: 7
  redis:
    addr: "localhost:6379"
clients:
  supported_languages: ["en", "es"]
  default_language: es
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CACHE_RECORD_LIMIT", "42")
	t.Setenv("SERVER_ADDR", ":7777")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// env wins over yaml
	if c.Server.Addr != ":7777" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Cache.RecordLimit != 42 {
		t.Fatalf("record limit = %d", c.Cache.RecordLimit)
	}
	// yaml wins over defaults
	if c.Cache.Kind != "redis" || c.Cache.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis config lost: %+v", c.Cache)
	}
	if c.Clients.DefaultLanguage != "es" {
		t.Fatalf("default language = %q", c.Clients.DefaultLanguage)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  timeout: \"not-a-duration\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid duration")
	}
}
