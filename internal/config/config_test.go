package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func mapLookup(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	err := applyEnv(&cfg, mapLookup(map[string]string{
		"BOT_TOKEN":        " token-123 ",
		"BASE_URL":         "https://files.example.com",
		"CHANNEL_ID":       "@drops",
		"PORT":             "8081",
		"DUPLICATE_POLICY": "overwrite",
		"LOG_FORMAT":       "json",
	}))
	if err != nil {
		t.Fatalf("applyEnv returned error: %v", err)
	}
	if cfg.Telegram.BotToken != "token-123" {
		t.Fatalf("unexpected bot token: %q", cfg.Telegram.BotToken)
	}
	if cfg.Server.BaseURL != "https://files.example.com" || cfg.Server.Port != 8081 {
		t.Fatalf("unexpected server config: %#v", cfg.Server)
	}
	if cfg.Telegram.ChannelID != "@drops" {
		t.Fatalf("unexpected channel id: %q", cfg.Telegram.ChannelID)
	}
	if cfg.Storage.DuplicatePolicy != "overwrite" {
		t.Fatalf("unexpected duplicate policy: %q", cfg.Storage.DuplicatePolicy)
	}
	if cfg.Storage.Extension != DefaultStorageExtension {
		t.Fatalf("expected default extension, got %q", cfg.Storage.Extension)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log config: %#v", cfg.Log)
	}
}

func TestApplyEnvIgnoresBlankValues(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	if err := applyEnv(&cfg, mapLookup(map[string]string{"PORT": "  ", "STORAGE_DIR": ""})); err != nil {
		t.Fatalf("applyEnv returned error: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Dir != DefaultStorageDir {
		t.Fatalf("expected default dir, got %q", cfg.Storage.Dir)
	}
}

func TestApplyEnvRejectsInvalidPort(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	err := applyEnv(&cfg, mapLookup(map[string]string{"PORT": "http"}))
	var invalid *InvalidValueError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}
	if invalid.Key != "PORT" {
		t.Fatalf("unexpected key: %s", invalid.Key)
	}
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("expected wrapped strconv error, got %v", err)
	}
}

func TestLoadReadsTOMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 9000
base_url = "https://from-file.example.com"

[storage]
extension = "bin"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BASE_URL", "https://from-env.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://from-env.example.com" {
		t.Fatalf("expected env to win, got %q", cfg.Server.BaseURL)
	}
	if cfg.Storage.Extension != "bin" {
		t.Fatalf("expected extension from file, got %q", cfg.Storage.Extension)
	}
	if cfg.Storage.DuplicatePolicy != DefaultDuplicatePolicy {
		t.Fatalf("expected default policy, got %q", cfg.Storage.DuplicatePolicy)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port == 0 || cfg.Storage.Dir == "" {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}
