package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceMQTT = "mqtt"
	SourceSim  = "sim"
)

// Tick interval bounds in milliseconds.
const (
	minTickIntervalMS = 1
	maxTickIntervalMS = 1000
)

// maxSlots is the number of controller slots.
const maxSlots = 4

// Config is the root configuration structure for the wiimote bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Source    SourceConfig    `yaml:"source"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig contains aggregation loop settings.
type BridgeConfig struct {
	ID                string `yaml:"id"`
	TickIntervalMS    int    `yaml:"tick_interval_ms"`
	HealthInterval    int    `yaml:"health_interval"` // seconds
	PublishDescriptor bool   `yaml:"publish_descriptor"`
	QoS               int    `yaml:"qos"` // QoS for channel publishes
}

// SourceConfig selects where controller samples come from.
type SourceConfig struct {
	// Type is "mqtt" (hardware helper) or "sim" (synthetic samples).
	Type         string          `yaml:"type"`
	StaleAfterMS int             `yaml:"stale_after_ms"`
	Sim          SimSourceConfig `yaml:"sim"`
	Helper       HelperConfig    `yaml:"helper"`
}

// HelperConfig launches the hardware helper that publishes raw samples.
// Only used with the mqtt source.
type HelperConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Binary          string   `yaml:"binary"`
	Args            []string `yaml:"args"`
	RestartDelay    int      `yaml:"restart_delay"`     // seconds
	MaxRestartDelay int      `yaml:"max_restart_delay"` // seconds
	MaxRestarts     int      `yaml:"max_restarts"`      // 0 = unlimited
}

// SimSourceConfig configures the simulated source.
type SimSourceConfig struct {
	Connected    int   `yaml:"connected"`
	NunchukSlots []int `yaml:"nunchuk_slots"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// FrameEvery forwards every Nth frame to websocket clients.
	FrameEvery int `yaml:"frame_every"`
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

	// SampleEvery writes every Nth frame as telemetry.
	SampleEvery int `yaml:"sample_every"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WIIMOTE_SECTION_KEY
// For example: WIIMOTE_DATABASE_PATH, WIIMOTE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                "wiimote-01",
			TickIntervalMS:    10,
			HealthInterval:    30,
			PublishDescriptor: true,
			QoS:               0,
		},
		Source: SourceConfig{
			Type:         SourceMQTT,
			StaleAfterMS: 2000,
			Helper: HelperConfig{
				RestartDelay:    1,
				MaxRestartDelay: 30,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/wiimote.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wiimote-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			FrameEvery:     5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     500,
			FlushInterval: 1,
			SampleEvery:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WIIMOTE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("WIIMOTE_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	// Source
	if v := os.Getenv("WIIMOTE_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = v
	}

	// Database
	if v := os.Getenv("WIIMOTE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("WIIMOTE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WIIMOTE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WIIMOTE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("WIIMOTE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("WIIMOTE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// Every problem is collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if strings.ContainsAny(c.Bridge.ID, "/+#") {
		errs = append(errs, "bridge.id must not contain MQTT topic characters (/ + #)")
	}
	if c.Bridge.TickIntervalMS < minTickIntervalMS || c.Bridge.TickIntervalMS > maxTickIntervalMS {
		errs = append(errs, fmt.Sprintf("bridge.tick_interval_ms must be between %d and %d", minTickIntervalMS, maxTickIntervalMS))
	}
	if c.Bridge.QoS < 0 || c.Bridge.QoS > 2 {
		errs = append(errs, "bridge.qos must be 0, 1, or 2")
	}

	// Source validation
	switch c.Source.Type {
	case SourceMQTT, SourceSim:
	default:
		errs = append(errs, fmt.Sprintf("source.type must be %q or %q", SourceMQTT, SourceSim))
	}
	if c.Source.Sim.Connected < 0 || c.Source.Sim.Connected > maxSlots {
		errs = append(errs, "source.sim.connected must be between 0 and 4")
	}
	for _, slot := range c.Source.Sim.NunchukSlots {
		if slot < 0 || slot >= maxSlots {
			errs = append(errs, fmt.Sprintf("source.sim.nunchuk_slots: slot %d must be between 0 and 3", slot))
		}
	}

	if c.Source.Helper.Enabled {
		if c.Source.Helper.Binary == "" {
			errs = append(errs, "source.helper.binary is required when the helper is enabled")
		}
		if c.Source.Type != SourceMQTT {
			errs = append(errs, "source.helper requires source.type mqtt")
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TickInterval returns the aggregation period as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Bridge.TickIntervalMS) * time.Millisecond
}

// HealthInterval returns the health publish period as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// StaleAfter returns how long an MQTT-fed slot may stay silent.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Source.StaleAfterMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
