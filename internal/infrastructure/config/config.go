package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for myhomed.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Plant    PlantConfig    `yaml:"plant"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Intake   IntakeConfig   `yaml:"intake"`
	Health   HealthConfig   `yaml:"health"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PlantConfig describes the MyHome gateway and how commands are paced to it.
type PlantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PacingMS is the pause after every successful send, in milliseconds.
	PacingMS int `yaml:"pacing_ms"`

	ConnectTimeoutMS int  `yaml:"connect_timeout_ms"`
	WriteTimeoutMS   int  `yaml:"write_timeout_ms"`
	ReadTimeoutMS    int  `yaml:"read_timeout_ms"`
	AwaitAck         bool `yaml:"await_ack"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig selects what happens to a frame that could not be delivered.
type RetryConfig struct {
	// Policy is "drop" or "requeue".
	Policy           string `yaml:"policy"`
	MaxAttempts      int    `yaml:"max_attempts"`
	InitialBackoffMS int    `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int    `yaml:"max_backoff_ms"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Sizes are in megabytes, age in days.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// IntakeConfig controls the MQTT action intake.
type IntakeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HealthConfig controls periodic health reporting.
type HealthConfig struct {
	// Interval between health reports, in seconds.
	Interval int `yaml:"interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MYHOME_SECTION_KEY
// For example: MYHOME_PLANT_HOST, MYHOME_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "MyHome",
		},
		Plant: PlantConfig{
			Host:             "127.0.0.1",
			Port:             20000,
			PacingMS:         300,
			ConnectTimeoutMS: 5000,
			WriteTimeoutMS:   5000,
			ReadTimeoutMS:    5000,
			Retry: RetryConfig{
				Policy:           "drop",
				MaxAttempts:      3,
				InitialBackoffMS: 1000,
				MaxBackoffMS:     30000,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/myhome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "myhomed",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/myhomed.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
		Metrics: MetricsConfig{
			Host: "127.0.0.1",
			Port: 9110,
			Path: "/metrics",
		},
		Intake: IntakeConfig{
			Enabled: true,
		},
		Health: HealthConfig{
			Interval: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Plant
	if v := os.Getenv("MYHOME_PLANT_HOST"); v != "" {
		cfg.Plant.Host = v
	}
	if v := os.Getenv("MYHOME_PLANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Plant.Port = port
		}
	}

	// Database
	if v := os.Getenv("MYHOME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MYHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MYHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MYHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MYHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("MYHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Plant
	if c.Plant.Host == "" {
		errs = append(errs, "plant.host is required")
	}
	if c.Plant.Port < 1 || c.Plant.Port > 65535 {
		errs = append(errs, "plant.port must be between 1 and 65535")
	}
	if c.Plant.PacingMS < 0 {
		errs = append(errs, "plant.pacing_ms must not be negative")
	}
	switch c.Plant.Retry.Policy {
	case "", "drop":
	case "requeue":
		if c.Plant.Retry.MaxAttempts < 1 {
			errs = append(errs, "plant.retry.max_attempts must be at least 1 with the requeue policy")
		}
	default:
		errs = append(errs, fmt.Sprintf("plant.retry.policy %q must be drop or requeue", c.Plant.Retry.Policy))
	}
	if c.Plant.Retry.MaxBackoffMS > 0 && c.Plant.Retry.MaxBackoffMS < c.Plant.Retry.InitialBackoffMS {
		errs = append(errs, "plant.retry.max_backoff_ms must not be below initial_backoff_ms")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be stdout, stderr or file", c.Logging.Output))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if c.Health.Interval < 1 {
		errs = append(errs, "health.interval must be at least 1 second")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the gateway host:port.
func (p PlantConfig) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Pacing returns the post-send pause as a Duration.
func (p PlantConfig) Pacing() time.Duration {
	return time.Duration(p.PacingMS) * time.Millisecond
}

// ConnectTimeout returns the dial plus handshake bound as a Duration.
func (p PlantConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the per-frame write bound as a Duration.
func (p PlantConfig) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutMS) * time.Millisecond
}

// ReadTimeout returns the ACK wait bound as a Duration.
func (p PlantConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutMS) * time.Millisecond
}

// InitialBackoff returns the first requeue backoff as a Duration.
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the requeue backoff cap as a Duration.
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMS) * time.Millisecond
}

// HealthInterval returns the health reporting interval as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.Interval) * time.Second
}

// MetricsAddress returns the host:port the metrics endpoint listens on.
func (c *Config) MetricsAddress() string {
	return net.JoinHostPort(c.Metrics.Host, strconv.Itoa(c.Metrics.Port))
}
