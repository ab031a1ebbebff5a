package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeProduction || cfg.TestMode() {
		t.Fatalf("expected production mode, got %q", cfg.Mode)
	}
	if cfg.ProductionURL != "https://www.osti.gov/elink/" || cfg.TestURL != "https://www.osti.gov/elinktest/" {
		t.Fatalf("unexpected endpoints %q %q", cfg.ProductionURL, cfg.TestURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.StorageTTL != 90*24*time.Hour || cfg.StorageCleanupInterval != 12*time.Hour {
		t.Fatalf("storage durations = %s / %s", cfg.StorageTTL, cfg.StorageCleanupInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ELINK_MODE", "Test")
	t.Setenv("ELINK_USERNAME", "osti-user")
	t.Setenv("ELINK_PASSWORD", "secret")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")
	t.Setenv("SEQUENCE_WRAPPER", "true")
	t.Setenv("STORAGE_TYPE", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.TestMode() {
		t.Fatalf("expected test mode, got %q", cfg.Mode)
	}
	if cfg.Username != "osti-user" || cfg.Password != "secret" {
		t.Fatalf("credentials not loaded: %q", cfg.Username)
	}
	if cfg.RequestTimeout != 5*time.Second || !cfg.SequenceWrapper || cfg.StorageType != "none" {
		t.Fatalf("unexpected config %v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ELINK_MODE":              "staging",
		"REQUEST_TIMEOUT_SECONDS": "0",
		"STORAGE_TTL_SECONDS":     "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestStringRedactsPassword(t *testing.T) {
	cfg := Config{Username: "u", Password: "hunter2"}
	if s := cfg.String(); strings.Contains(s, "hunter2") || !strings.Contains(s, "******") {
		t.Fatalf("password leaked or missing mask: %s", s)
	}
	if cfg.Password != "hunter2" {
		t.Fatalf("Redacted must not modify the receiver")
	}
}
