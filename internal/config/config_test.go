package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "app:\n  name: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 8001 {
		t.Errorf("default port = %d, want 8001", cfg.Server.Port)
	}
	if cfg.Auth.APIKey != "sk-123456" {
		t.Errorf("default api key = %q", cfg.Auth.APIKey)
	}
	if cfg.Wavespeed.APIURL != DefaultAPIURL {
		t.Errorf("default api url = %q", cfg.Wavespeed.APIURL)
	}
	if cfg.Wavespeed.PollInterval != 2 || cfg.Wavespeed.PollTimeout != 120 {
		t.Errorf("poll defaults = %d/%d, want 2/120", cfg.Wavespeed.PollInterval, cfg.Wavespeed.PollTimeout)
	}
	if cfg.Wavespeed.StreamTimeout != 300 || cfg.Wavespeed.KeepAliveInterval != 10 {
		t.Errorf("stream defaults = %d/%d, want 300/10", cfg.Wavespeed.StreamTimeout, cfg.Wavespeed.KeepAliveInterval)
	}
	if cfg.Wavespeed.DefaultSize != "1536*1536" {
		t.Errorf("default size = %q", cfg.Wavespeed.DefaultSize)
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9000
auth:
  apiKey: sk-test
wavespeed:
  cookies:
    - cookie-a
    - cookie-b
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Auth.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.Auth.APIKey)
	}
	if len(cfg.Wavespeed.Cookies) != 2 {
		t.Errorf("cookies = %v, want 2 entries", cfg.Wavespeed.Cookies)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server:\n  port: 9000\n")

	t.Setenv("PORT", "7000")
	t.Setenv("WAVESPEED_COOKIE", "c1, c2 ,")
	t.Setenv("R2_ENABLED", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want env override 7000", cfg.Server.Port)
	}
	if len(cfg.Wavespeed.Cookies) != 2 || cfg.Wavespeed.Cookies[0] != "c1" || cfg.Wavespeed.Cookies[1] != "c2" {
		t.Errorf("cookies = %v, want [c1 c2]", cfg.Wavespeed.Cookies)
	}
	if !cfg.R2.Enabled {
		t.Error("R2.Enabled = false, want env override true")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil for missing file", err)
	}
	if cfg.Server.Port != 8001 {
		t.Errorf("port = %d, want defaults applied", cfg.Server.Port)
	}
}

func TestManager_HotReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  apiKey: key-one\n")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got := mgr.APIKey(); got != "key-one" {
		t.Fatalf("APIKey() = %q, want key-one", got)
	}

	writeConfig(t, dir, "auth:\n  apiKey: key-two\n")
	// 确保 mtime 前进, 避免文件系统时间精度问题。
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("failed to bump mtime: %v", err)
	}

	if got := mgr.APIKey(); got != "key-two" {
		t.Errorf("APIKey() after reload = %q, want key-two", got)
	}
}

func TestManager_KeepsOldConfigOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  apiKey: key-one\n")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	writeConfig(t, dir, "auth: [broken")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("failed to bump mtime: %v", err)
	}

	if got := mgr.APIKey(); got != "key-one" {
		t.Errorf("APIKey() = %q, want previous snapshot key-one", got)
	}
}
