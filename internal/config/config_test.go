package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Shells) == 0 {
		t.Error("expected default config to carry shell profiles")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellgate.json")
	original := Default()
	original.Security.MaxCommandLength = 4096

	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Security.MaxCommandLength != 4096 {
		t.Errorf("MaxCommandLength = %d, want 4096", loaded.Security.MaxCommandLength)
	}
}

func TestLoadToleratesJSON5Comments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellgate.json5")
	doc := []byte(`{
		// trailing comma and comment tolerated by JSON5
		"security": {
			"maxCommandLength": 1024,
			"commandTimeout": 15,
		},
	}`)
	if err := os.WriteFile(path, doc, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.MaxCommandLength != 1024 {
		t.Errorf("MaxCommandLength = %d, want 1024", cfg.Security.MaxCommandLength)
	}
}

func TestValidateRejectsInvalidDefaultEnv(t *testing.T) {
	cfg := Default()
	cfg.Shells["gitbash"].DefaultEnv = map[string]string{"MY_API_KEY": "secret"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to reject a blocked defaultEnv name")
	}
}
