package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", cfg.Model())
	}
	if cfg.AccessMode() != "current" {
		t.Fatalf("expected default access mode, got %q", cfg.AccessMode())
	}
	if cfg.ThreadListPageSize() != 20 {
		t.Fatalf("expected default page size, got %d", cfg.ThreadListPageSize())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[codex]
bin = " /usr/local/bin/codex "
model = "gpt-5.2-codex"
effort = "high"
access_mode = "read-only"

[logging]
level = "debug"

[ui]
thread_list_page_size = 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CodexBin() != "/usr/local/bin/codex" {
		t.Fatalf("expected trimmed bin, got %q", cfg.CodexBin())
	}
	if cfg.Model() != "gpt-5.2-codex" {
		t.Fatalf("unexpected model: %q", cfg.Model())
	}
	if cfg.Effort() != "high" {
		t.Fatalf("unexpected effort: %q", cfg.Effort())
	}
	if cfg.AccessMode() != "read-only" {
		t.Fatalf("unexpected access mode: %q", cfg.AccessMode())
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel())
	}
	if cfg.ThreadListPageSize() != 5 {
		t.Fatalf("unexpected page size: %d", cfg.ThreadListPageSize())
	}
}

func TestAccessModeRejectsUnknownValues(t *testing.T) {
	cfg := Default()
	cfg.Codex.AccessMode = "yolo"
	if cfg.AccessMode() != "current" {
		t.Fatalf("expected fallback access mode, got %q", cfg.AccessMode())
	}
}
