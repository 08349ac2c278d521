package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Connector.MaxReconnectAttempts != 10 {
		t.Fatalf("expected 10 reconnect attempts, got %d", cfg.Connector.MaxReconnectAttempts)
	}
	if cfg.Connector.ReconnectBase != 5*time.Second {
		t.Fatalf("expected 5s reconnect base, got %s", cfg.Connector.ReconnectBase)
	}
	if cfg.Thresholds.HighSeverity != 1 || cfg.Thresholds.SpamReports != 5 || cfg.Thresholds.ChannelReports != 10 {
		t.Fatalf("unexpected default thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Queue.Capacity <= 0 {
		t.Fatal("expected a positive queue capacity")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"paths": {"dataDir": "` + dir + `"},
		"connector": {"maxReconnectAttempts": 3},
		"thresholds": {"spamReports": 7},
		"sinks": {"slack": {"enabled": true, "channel": "#mods"}}
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHATSENTRY_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.DataDir != dir {
		t.Fatalf("expected data dir %s, got %s", dir, cfg.Paths.DataDir)
	}
	if cfg.Connector.MaxReconnectAttempts != 3 {
		t.Fatalf("expected 3 attempts from file, got %d", cfg.Connector.MaxReconnectAttempts)
	}
	if cfg.Thresholds.SpamReports != 7 {
		t.Fatalf("expected spam threshold 7, got %d", cfg.Thresholds.SpamReports)
	}
	// Unset file fields keep their defaults.
	if cfg.Thresholds.ChannelReports != 10 {
		t.Fatalf("expected default channel threshold, got %d", cfg.Thresholds.ChannelReports)
	}
	if !cfg.Sinks.Slack.Enabled || cfg.Sinks.Slack.Channel != "#mods" {
		t.Fatalf("unexpected slack sink config: %+v", cfg.Sinks.Slack)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"thresholds": {"spamReports": 7}}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHATSENTRY_CONFIG", path)
	t.Setenv("CHATSENTRY_THRESHOLDS_SPAM_REPORTS", "9")
	t.Setenv("CHATSENTRY_CONNECTOR_CHALLENGE_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.SpamReports != 9 {
		t.Fatalf("env must win over file, got %d", cfg.Thresholds.SpamReports)
	}
	if cfg.Connector.ChallengeTimeout != 90*time.Second {
		t.Fatalf("expected 90s challenge timeout, got %s", cfg.Connector.ChallengeTimeout)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CHATSENTRY_CONFIG", filepath.Join(t.TempDir(), "absent.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Connector.MaxReconnectAttempts != 10 {
		t.Fatalf("expected defaults, got %+v", cfg.Connector)
	}
}
