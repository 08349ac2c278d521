// Package config provides configuration types and loading for chatsentry.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/chatsentry/chatsentry/internal/alert"
	"github.com/chatsentry/chatsentry/internal/bus"
	"github.com/chatsentry/chatsentry/internal/connector"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Connector, Queue, Thresholds, Dispatcher, Sinks.
type Config struct {
	Paths      PathsConfig            `json:"paths"`
	Connector  ConnectorConfig        `json:"connector"`
	Queue      QueueConfig            `json:"queue"`
	Thresholds alert.Thresholds       `json:"thresholds"`
	Dispatcher alert.DispatcherConfig `json:"dispatcher"`
	Sinks      SinksConfig            `json:"sinks"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ConnectorConfig groups session lifecycle settings.
type ConnectorConfig struct {
	DeviceDB             string        `json:"deviceDb" envconfig:"DEVICE_DB"`
	QRPath               string        `json:"qrPath" envconfig:"QR_PATH"`
	ChallengeTimeout     time.Duration `json:"challengeTimeout" envconfig:"CHALLENGE_TIMEOUT"`
	ReconnectBase        time.Duration `json:"reconnectBase" envconfig:"RECONNECT_BASE"`
	MaxReconnectAttempts int           `json:"maxReconnectAttempts" envconfig:"MAX_RECONNECT_ATTEMPTS"`
}

// QueueConfig bounds the inbound event queue.
type QueueConfig struct {
	Capacity int `json:"capacity" envconfig:"CAPACITY"`
}

// SinksConfig contains all alert delivery targets.
type SinksConfig struct {
	Slack alert.SlackConfig `json:"slack"`
	Kafka alert.KafkaConfig `json:"kafka"`
	AMQP  alert.AMQPConfig  `json:"amqp"`
}

// DefaultDataDir is the fallback data directory under the user home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatsentry"
	}
	return filepath.Join(home, ".chatsentry")
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Paths: PathsConfig{
			DataDir: dataDir,
		},
		Connector: ConnectorConfig{
			DeviceDB:             filepath.Join(dataDir, "device.db"),
			QRPath:               filepath.Join(dataDir, "login-qr.png"),
			ChallengeTimeout:     connector.DefaultChallengeTimeout,
			ReconnectBase:        5 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Queue: QueueConfig{
			Capacity: bus.DefaultCapacity,
		},
		Thresholds: alert.DefaultThresholds(),
		Dispatcher: alert.DefaultDispatcherConfig(),
	}
}

// StorePath returns the location of the ingestion database.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "chatsentry.db")
}
