package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should fall back to defaults: %v", err)
	}
	if cfg.Listen != ":8087" {
		t.Errorf("default listen = %q", cfg.Listen)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %q", cfg.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foundry.yaml")
	body := "listen: \":9000\"\ndatabase_path: \"/tmp/f.db\"\nlogging:\n  level: debug\n  json_format: false\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.DatabasePath != "/tmp/f.db" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.JSONFormat {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FOUNDRY_LISTEN", ":7001")
	t.Setenv("FOUNDRY_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":7001" {
		t.Errorf("env override listen = %q", cfg.Listen)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env override level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foundry.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: shouty\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown level")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "foundry.yaml")
	want := Default()
	want.Listen = ":6543"

	if err := Save(want, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Listen != want.Listen {
		t.Errorf("round trip listen = %q, want %q", got.Listen, want.Listen)
	}
}
