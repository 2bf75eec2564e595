package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "API_KEY", "AUTOPLAY_COUNTDOWN", "CONTROLS_IDLE", "PLAYER_AUTOPLAY", "RELATED_PAGE_SIZE", "CONTROL_RATE_LIMIT", "SNAPSHOT_PATH"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.APIKeyHeader != "X-API-Key" {
		t.Errorf("APIKeyHeader = %q", cfg.APIKeyHeader)
	}
	if cfg.AutoplayCountdown != 5*time.Second {
		t.Errorf("AutoplayCountdown = %v, want 5s", cfg.AutoplayCountdown)
	}
	if cfg.ControlsIdle != 3*time.Second {
		t.Errorf("ControlsIdle = %v, want 3s", cfg.ControlsIdle)
	}
	if !cfg.Autoplay {
		t.Error("Autoplay should default to true")
	}
	if cfg.RelatedPageSize != 12 {
		t.Errorf("RelatedPageSize = %d, want 12", cfg.RelatedPageSize)
	}
	if cfg.ControlRateLimit != 120 {
		t.Errorf("ControlRateLimit = %d, want 120", cfg.ControlRateLimit)
	}
	if cfg.SnapshotPath != "" {
		t.Errorf("SnapshotPath = %q, want empty", cfg.SnapshotPath)
	}
}

func TestFromEnv_overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/v1/")
	t.Setenv("AUTOPLAY_COUNTDOWN", "8")
	t.Setenv("CONTROLS_IDLE", "1500ms")
	t.Setenv("PLAYER_MUTED", "true")
	t.Setenv("CONTROL_RATE_LIMIT", "0")
	t.Setenv("SNAPSHOT_PATH", "/var/lib/watchd/page.json")

	cfg := FromEnv()
	if cfg.APIBaseURL != "https://api.example.com/v1" {
		t.Errorf("APIBaseURL should be trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.AutoplayCountdown != 8*time.Second {
		t.Errorf("bare seconds: got %v", cfg.AutoplayCountdown)
	}
	if cfg.ControlsIdle != 1500*time.Millisecond {
		t.Errorf("duration string: got %v", cfg.ControlsIdle)
	}
	if !cfg.Muted {
		t.Error("Muted should be true")
	}
	if cfg.ControlRateLimit != 0 {
		t.Errorf("ControlRateLimit = %d, want 0", cfg.ControlRateLimit)
	}
	if cfg.SnapshotPath != "/var/lib/watchd/page.json" {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
	}
}

func TestGetEnvDuration_invalid(t *testing.T) {
	t.Setenv("X_DUR", "soon")
	if got := GetEnvDuration("X_DUR", time.Second); got != time.Second {
		t.Errorf("invalid duration should fall back, got %v", got)
	}
}

func TestLoad_dotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("WATCH_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WATCH_TEST_VALUE", "")
	os.Unsetenv("WATCH_TEST_VALUE")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("WATCH_TEST_VALUE", ""); got != "from-file" {
		t.Errorf("GetEnv after Load = %q", got)
	}
}

func TestLoad_missing_file(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
