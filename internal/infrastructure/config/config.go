package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport types.
const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// deviceAddressLen is the length of a remapped device address.
const deviceAddressLen = 4

// Config is the root configuration structure for the CUL bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Transport TransportConfig `yaml:"transport"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Registry  RegistryConfig  `yaml:"registry"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig contains bridge identity and loop settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// DiscoveryPrefix is the bus context prefix for state and config topics.
	// Default: "homeassistant/binary_sensor/"
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// PollInterval is the delay between transport checks.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// RetainState publishes state messages retained.
	// Default: false
	RetainState bool `yaml:"retain_state"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30
	HealthInterval int `yaml:"health_interval"`

	// HealthTopic is the retained health status topic.
	// Default: "culbridge/health"
	HealthTopic string `yaml:"health_topic"`
}

// TransportConfig selects and configures the receiver connection.
type TransportConfig struct {
	// Type is "serial" or "websocket". Default: serial
	Type      string          `yaml:"type"`
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// SerialConfig contains serial port settings for a locally attached stick.
type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`

	// Parity is N, E or O.
	Parity string `yaml:"parity"`

	// InitDelay is how long to wait after opening before the receiver
	// accepts commands.
	InitDelay time.Duration `yaml:"init_delay"`

	// InitCommand is written once after InitDelay ("\r\n" is appended).
	// "X21" makes the receiver report known-good packets with RSSI.
	InitCommand string `yaml:"init_command"`
}

// WebSocketConfig contains settings for a stick relayed over WebSocket.
type WebSocketConfig struct {
	URL                string `yaml:"url"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// String returns a string representation with password masked.
func (w WebSocketConfig) String() string {
	password := ""
	if w.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("WebSocketConfig{URL:%q, Username:%q, Password:%s, InsecureSkipVerify:%t}",
		w.URL, w.Username, password, w.InsecureSkipVerify)
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic carries the online/offline status and the LWT.
	// Default: "culbridge/status"
	StatusTopic string `yaml:"status_topic"`
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

// MarshalJSON implements json.Marshaler to redact the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type redacted MQTTAuthConfig
	safe := redacted(a)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DeviceConfig maps a device address to a display name and sensor class.
type DeviceConfig struct {
	Address     string `yaml:"address"`
	Name        string `yaml:"name"`
	DeviceClass string `yaml:"device_class"`
}

// RegistryConfig selects where the device registry is loaded from.
type RegistryConfig struct {
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite settings for the registry source.
// An empty Path means devices come from the devices section.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains settings for the read-only status API.
type APIConfig struct {
	// Enabled starts the HTTP listener. Default: false
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Stream   StreamConfig     `yaml:"stream"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// StreamConfig contains settings for the live event WebSocket.
type StreamConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: CULBRIDGE_SECTION_KEY
// For example: CULBRIDGE_SERIAL_DEVICE, CULBRIDGE_MQTT_HOST
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
			ID:              "culbridge-01",
			DiscoveryPrefix: "homeassistant/binary_sensor/",
			PollInterval:    time.Second,
			HealthInterval:  30,
			HealthTopic:     "culbridge/health",
		},
		Transport: TransportConfig{
			Type: TransportSerial,
			Serial: SerialConfig{
				Device:      "/dev/ttyUSB0",
				BaudRate:    38400,
				Parity:      "N",
				InitDelay:   3 * time.Second,
				InitCommand: "X21",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     1883,
				ClientID: "culbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			StatusTopic: "culbridge/status",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
			Stream: StreamConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CULBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Transport
	if v := os.Getenv("CULBRIDGE_SERIAL_DEVICE"); v != "" {
		cfg.Transport.Serial.Device = v
	}
	if v := os.Getenv("CULBRIDGE_SERIAL_BAUD_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transport.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("CULBRIDGE_WEBSOCKET_URL"); v != "" {
		cfg.Transport.WebSocket.URL = v
	}
	if v := os.Getenv("CULBRIDGE_WEBSOCKET_PASSWORD"); v != "" {
		cfg.Transport.WebSocket.Password = v
	}

	// MQTT
	if v := os.Getenv("CULBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CULBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CULBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Registry
	if v := os.Getenv("CULBRIDGE_REGISTRY_DATABASE_PATH"); v != "" {
		cfg.Registry.Database.Path = v
	}

	// API
	if v := os.Getenv("CULBRIDGE_API_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.API.Enabled = b
		}
	}
	if v := os.Getenv("CULBRIDGE_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateTransport()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validateDevices()...)
	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBridge validates bridge settings.
func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.DiscoveryPrefix != "" && strings.ContainsAny(c.Bridge.DiscoveryPrefix, "+#") {
		errs = append(errs, "bridge.discovery_prefix must not contain MQTT wildcards")
	}
	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, "bridge.poll_interval must be positive")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	return errs
}

// validateTransport validates the selected transport.
func (c *Config) validateTransport() []string {
	var errs []string
	switch c.Transport.Type {
	case TransportSerial:
		if c.Transport.Serial.Device == "" {
			errs = append(errs, "transport.serial.device is required")
		}
		if c.Transport.Serial.BaudRate <= 0 {
			errs = append(errs, "transport.serial.baud_rate must be positive")
		}
		switch strings.ToUpper(c.Transport.Serial.Parity) {
		case "N", "E", "O":
		default:
			errs = append(errs, fmt.Sprintf("transport.serial.parity %q is invalid (use N, E, or O)", c.Transport.Serial.Parity))
		}
	case TransportWebSocket:
		u := c.Transport.WebSocket.URL
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			errs = append(errs, "transport.websocket.url must start with ws:// or wss://")
		}
	default:
		errs = append(errs, fmt.Sprintf("transport.type %q is invalid (use serial or websocket)", c.Transport.Type))
	}
	return errs
}

// validateMQTT validates MQTT broker settings.
func (c *Config) validateMQTT() []string {
	var errs []string
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	return errs
}

// validateDevices validates the inline device list. It is skipped when the
// registry is loaded from a database.
func (c *Config) validateDevices() []string {
	if c.Registry.Database.Path != "" {
		return nil
	}

	var errs []string
	addresses := make(map[string]bool)
	names := make(map[string]bool)

	for i, dev := range c.Devices {
		if !validDeviceAddress(dev.Address) {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q must be 4 digits in the range 1-4", i, dev.Address))
		} else if addresses[dev.Address] {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q is duplicate", i, dev.Address))
		}
		addresses[dev.Address] = true

		if dev.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
		} else if strings.ContainsAny(dev.Name, "/+#") {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q must not contain '/', '+' or '#'", i, dev.Name))
		} else if names[dev.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicate", i, dev.Name))
		}
		names[dev.Name] = true

		if dev.DeviceClass == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_class is required", i))
		}
	}

	return errs
}

// validateAPI validates the status API settings. It is skipped when the
// API is disabled.
func (c *Config) validateAPI() []string {
	if !c.API.Enabled {
		return nil
	}

	var errs []string
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Stream.PingInterval < 1 {
		errs = append(errs, "api.stream.ping_interval must be at least 1 second")
	}
	if c.API.Stream.MaxMessageSize < 1 {
		errs = append(errs, "api.stream.max_message_size must be positive")
	}
	return errs
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// validDeviceAddress reports whether s is 4 ELV digits (1-4).
func validDeviceAddress(s string) bool {
	if len(s) != deviceAddressLen {
		return false
	}
	for _, r := range s {
		if r < '1' || r > '4' {
			return false
		}
	}
	return true
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}
