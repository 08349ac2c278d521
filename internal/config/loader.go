package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".chatsentry"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CHATSENTRY_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Process env files are best effort.
	loadEnvFiles()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	envconfig.Process("CHATSENTRY_PATHS", &cfg.Paths)
	envconfig.Process("CHATSENTRY_CONNECTOR", &cfg.Connector)
	envconfig.Process("CHATSENTRY_QUEUE", &cfg.Queue)
	envconfig.Process("CHATSENTRY_THRESHOLDS", &cfg.Thresholds)
	envconfig.Process("CHATSENTRY_DISPATCHER", &cfg.Dispatcher)
	envconfig.Process("CHATSENTRY_SINKS_SLACK", &cfg.Sinks.Slack)
	envconfig.Process("CHATSENTRY_SINKS_KAFKA", &cfg.Sinks.Kafka)
	envconfig.Process("CHATSENTRY_SINKS_AMQP", &cfg.Sinks.AMQP)

	// Fallback for the Slack token
	if cfg.Sinks.Slack.Token == "" {
		cfg.Sinks.Slack.Token = os.Getenv("SLACK_BOT_TOKEN")
	}

	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Connector.DeviceDB)
	expandHome(&cfg.Connector.QRPath)

	return cfg, nil
}

// loadEnvFiles loads .env and ~/.chatsentry/env into the process
// environment without overriding variables already set.
func loadEnvFiles() {
	godotenv.Load()
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ConfigDir, "env"))
	}
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
