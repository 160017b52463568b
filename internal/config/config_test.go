package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ImageMaxBytes != 10*1024*1024 {
		t.Errorf("ImageMaxBytes = %d, want 10MB", cfg.ImageMaxBytes)
	}
	if cfg.ForegroundIntervalMS != 1000 {
		t.Errorf("ForegroundIntervalMS = %d, want 1000", cfg.ForegroundIntervalMS)
	}
	if cfg.BackgroundCron != "*/15 * * * *" {
		t.Errorf("BackgroundCron = %q", cfg.BackgroundCron)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ImageMaxBytes != DefaultConfig().ImageMaxBytes {
		t.Error("missing config file should yield defaults")
	}
}

func TestLoad_OverridesMergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := `{"image_max_bytes": 1048576, "db_max_open_conns": 1}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ImageMaxBytes != 1048576 {
		t.Errorf("ImageMaxBytes = %d, want override", cfg.ImageMaxBytes)
	}
	if cfg.DBMaxOpenConns != 1 {
		t.Errorf("DBMaxOpenConns = %d, want 1", cfg.DBMaxOpenConns)
	}
	// Untouched keys keep their defaults
	if cfg.BackgroundCron != "*/15 * * * *" {
		t.Errorf("BackgroundCron = %q, want default", cfg.BackgroundCron)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{nope"), 0600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestMerge_OverlayWins(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{BackgroundCron: "0 * * * *", ForegroundIntervalMS: 500}

	merged := Merge(base, overlay)
	if merged.BackgroundCron != "0 * * * *" {
		t.Errorf("BackgroundCron = %q", merged.BackgroundCron)
	}
	if merged.ForegroundIntervalMS != 500 {
		t.Errorf("ForegroundIntervalMS = %d", merged.ForegroundIntervalMS)
	}
	if merged.ImageMaxBytes != base.ImageMaxBytes {
		t.Error("zero overlay values should fall back to base")
	}
}
