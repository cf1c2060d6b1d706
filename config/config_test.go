package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gsm.yaml")
	contents := "RSSITarget: -45\nMSPower:\n  Max: 30\n  Min: 5\n  Damping: 10\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RSSITarget != -45 {
		t.Fatalf("RSSITarget = %d, want -45", cfg.RSSITarget)
	}
	if cfg.MSPower.Max != 30 {
		t.Fatalf("MSPower.Max = %d, want 30", cfg.MSPower.Max)
	}
	if cfg.MaxSpeechLatency != Default().MaxSpeechLatency {
		t.Fatal("fields absent from the file should keep their default value")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/gsm.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
