package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Store.Driver != StoreDriverSQLite {
		t.Fatalf("expected sqlite default driver, got %q", cfg.Store.Driver)
	}
	if cfg.Sync.InviteTTL != 168*time.Hour {
		t.Fatalf("expected 7 day invite TTL, got %s", cfg.Sync.InviteTTL)
	}
	if !cfg.App.IsDev() {
		t.Fatalf("expected dev env by default")
	}
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("CASHLIA_STORE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}

func TestRedisConfigured(t *testing.T) {
	var r RedisConfig
	if r.Configured() {
		t.Fatalf("empty redis config should not report configured")
	}
	r.Address = "localhost:6379"
	if !r.Configured() {
		t.Fatalf("address should mark redis configured")
	}
}
