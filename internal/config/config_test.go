package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("PLAN_CACHE_TTL", "30s")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}
	if cfg.Cache.PlanTTL != 30*time.Second {
		t.Errorf("Cache.PlanTTL = %v, want %v", cfg.Cache.PlanTTL, 30*time.Second)
	}
	if cfg.Database.Driver != StoreDriverMemory {
		t.Errorf("Database.Driver = %v, want %v", cfg.Database.Driver, StoreDriverMemory)
	}
	if cfg.Invitation.DefaultTTL != 7*24*time.Hour {
		t.Errorf("Invitation.DefaultTTL = %v, want 168h", cfg.Invitation.DefaultTTL)
	}
}

func TestLoadConfig_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for unknown driver")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "parses valid duration", envValue: "90s", want: 90 * time.Second},
		{name: "falls back on garbage", envValue: "soon", want: time.Minute},
		{name: "falls back when unset", envValue: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_KEY", tt.envValue)
			if got := getEnvAsDuration("TEST_DURATION_KEY", time.Minute); got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMasterTokenKey(t *testing.T) {
	tests := map[string]string{
		"reddit":   "REDDIT_MASTER_ACCESS_TOKEN",
		"YouTube":  "YOUTUBE_MASTER_ACCESS_TOKEN",
		" tiktok ": "TIKTOK_MASTER_ACCESS_TOKEN",
	}
	for provider, want := range tests {
		if got := MasterTokenKey(provider); got != want {
			t.Errorf("MasterTokenKey(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestSources(t *testing.T) {
	t.Setenv("REDDIT_MASTER_ACCESS_TOKEN", "env-token")
	t.Setenv("EMPTY_MASTER_ACCESS_TOKEN", "")

	if v, ok := (EnvSource{}).Lookup("REDDIT_MASTER_ACCESS_TOKEN"); !ok || v != "env-token" {
		t.Errorf("EnvSource.Lookup() = %q, %v", v, ok)
	}
	if _, ok := (EnvSource{}).Lookup("EMPTY_MASTER_ACCESS_TOKEN"); ok {
		t.Error("EnvSource.Lookup() should treat empty values as absent")
	}

	src := MapSource{"A": "1", "B": ""}
	if v, ok := src.Lookup("A"); !ok || v != "1" {
		t.Errorf("MapSource.Lookup(A) = %q, %v", v, ok)
	}
	if _, ok := src.Lookup("B"); ok {
		t.Error("MapSource.Lookup(B) should be absent")
	}
	if _, ok := src.Lookup("C"); ok {
		t.Error("MapSource.Lookup(C) should be absent")
	}
}
