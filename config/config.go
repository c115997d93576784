package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	InstanceName string `yaml:"instance_name"`

	Motion    MotionConfig    `yaml:"motion"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Log       LogConfig       `yaml:"log"`
}

// MotionConfig selects and configures the pedometer backend.
type MotionConfig struct {
	Source   string         `yaml:"source"` // "sim", "recorded" or "remote"
	Sim      SimConfig      `yaml:"sim"`
	Recorded RecordedConfig `yaml:"recorded"`
	Remote   RemoteConfig   `yaml:"remote"`
}

// SimConfig defines the simulated pedometer.
type SimConfig struct {
	Available      bool          `yaml:"available"`
	StepsPerMinute int           `yaml:"steps_per_minute"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// RecordedConfig defines the sample-history pedometer.
type RecordedConfig struct {
	Backend  string        `yaml:"backend"` // "sql" or "redis"
	PollRate time.Duration `yaml:"poll_rate"`
}

// RemoteConfig defines the remote pedometer gateway.
type RemoteConfig struct {
	Host    string        `yaml:"host"    json:"host"`
	Port    int           `yaml:"port"    json:"port"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DatabaseConfig defines the sample store.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebConfig defines the web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// MessagingConfig defines the messaging backend.
type MessagingConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Backend           string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT              MQTTConfig    `yaml:"mqtt"`
	Kafka             KafkaConfig   `yaml:"kafka"`
	EventsTopic       string        `yaml:"events_topic"`
	SamplesTopic      string        `yaml:"samples_topic"`
	StatusTopic       string        `yaml:"status_topic"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// LogConfig routes the standard logger to a rotating file when File is set.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		InstanceName: "steptracker",
		Motion: MotionConfig{
			Source: "sim",
			Sim: SimConfig{
				Available:      true,
				StepsPerMinute: 100,
				UpdateInterval: 2 * time.Second,
			},
			Recorded: RecordedConfig{
				Backend:  "sql",
				PollRate: time.Second,
			},
			Remote: RemoteConfig{
				Host:    "localhost",
				Port:    8090,
				Timeout: 10 * time.Second,
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "steptracker.db"},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8081,
		},
		Messaging: MessagingConfig{
			Backend:           "mqtt",
			EventsTopic:       "steptracker/events",
			SamplesTopic:      "steptracker/samples",
			StatusTopic:       "steptracker/status",
			HeartbeatInterval: 60 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ClientID returns the configured MQTT client ID, or derives one from the
// instance name.
func (c *Config) ClientID() string {
	if c.Messaging.MQTT.ClientID != "" {
		return c.Messaging.MQTT.ClientID
	}
	return c.InstanceName + "-bridge"
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
