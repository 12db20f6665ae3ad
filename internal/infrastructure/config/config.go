package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BENCHLINK_"

// DefaultPath is used when BENCHLINK_CONFIG is unset.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for BenchLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Valves    ValvesConfig    `yaml:"valves"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// SiteConfig identifies the bench this server runs on.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds

	// HistoryRetention prunes position history older than this. Zero keeps
	// everything.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains API authentication settings.
type SecurityConfig struct {
	// Enabled requires a bearer token on every /api/v1 route except /health.
	Enabled bool      `yaml:"enabled"`
	JWT     JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// TelemetryConfig controls the Prometheus exposition endpoint.
type TelemetryConfig struct {
	Prometheus bool   `yaml:"prometheus"`
	Path       string `yaml:"path"`
}

// ValvesConfig contains valve model catalog settings.
type ValvesConfig struct {
	// ModelPaths lists extra model table files or directories.
	ModelPaths []string `yaml:"model_paths"`

	// DefaultMoveTimeout bounds one physical move when a component does
	// not set its own.
	DefaultMoveTimeout time.Duration `yaml:"default_move_timeout"`
}

// DeviceConfig declares one physical instrument.
type DeviceConfig struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Driver     string            `yaml:"driver"`
	Connection ConnectionConfig  `yaml:"connection"`
	Components []ComponentConfig `yaml:"components"`
}

// ConnectionConfig describes how to reach an instrument.
//
// Type is "serial" or "tcp" for line-oriented drivers, and "tcp" or "rtu"
// for Modbus. The simulated driver ignores it.
type ConnectionConfig struct {
	Type     string        `yaml:"type"`
	Address  string        `yaml:"address"`
	BaudRate int           `yaml:"baud_rate"`
	DataBits int           `yaml:"data_bits"`
	StopBits int           `yaml:"stop_bits"`
	Parity   string        `yaml:"parity"`
	Timeout  time.Duration `yaml:"timeout"`
	UnitID   int           `yaml:"unit_id"`
}

// ComponentConfig declares one valve on an instrument.
type ComponentConfig struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`

	// Address is the driver-specific component address (a VICI ID
	// prefix, for example). Empty for single-valve instruments.
	Address string `yaml:"address"`

	// Labels overrides the model's position labels.
	Labels []string `yaml:"labels"`

	Registers   RegisterConfig    `yaml:"registers"`
	MoveTimeout time.Duration     `yaml:"move_timeout"`
	Options     map[string]string `yaml:"options"`
}

// RegisterConfig maps a Modbus valve's holding registers.
type RegisterConfig struct {
	Target    uint16 `yaml:"target"`
	Position  uint16 `yaml:"position"`
	IndexBase int    `yaml:"index_base"`
}

// Path returns the config file path named by BENCHLINK_CONFIG, or
// DefaultPath.
func Path() string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BENCHLINK_SECTION_KEY
// For example: BENCHLINK_DATABASE_PATH, BENCHLINK_API_PORT
//
// Relative valves.model_paths entries are resolved against the directory
// holding the config file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.resolveModelPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "bench-001",
			Name: "BenchLink",
		},
		Database: DatabaseConfig{
			Path:        "./data/benchlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "benchlink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer:         "benchlink",
				AccessTokenTTL: 60,
			},
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
			Path:       "/metrics",
		},
		Valves: ValvesConfig{
			DefaultMoveTimeout: 10 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BENCHLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	if v := env("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := env("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := env("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := env("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := env("API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := env("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := env("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Colon-separated, like PATH.
	if v := env("MODEL_PATHS"); v != "" {
		cfg.Valves.ModelPaths = filepath.SplitList(v)
	}

	if v := env("JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

func (c *Config) resolveModelPaths(base string) {
	for i, p := range c.Valves.ModelPaths {
		if p != "" && !filepath.IsAbs(p) {
			c.Valves.ModelPaths[i] = filepath.Join(base, p)
		}
	}
}

// Validate checks the configuration for errors and security issues.
//
// Every problem is collected; the returned error lists them all.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// An empty or short secret would let anyone mint tokens that move
	// valves on the bench.
	const minJWTSecretLength = 32
	if c.Security.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set BENCHLINK_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if c.Valves.DefaultMoveTimeout <= 0 {
		errs = append(errs, "valves.default_move_timeout must be positive")
	}

	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateDevices() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Devices))

	for i, d := range c.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if d.ID != "" {
			where = fmt.Sprintf("devices[%s]", d.ID)
		}

		switch {
		case d.ID == "":
			errs = append(errs, where+".id is required")
		case seen[d.ID]:
			errs = append(errs, where+".id is duplicated")
		}
		seen[d.ID] = true

		if d.Driver == "" {
			errs = append(errs, where+".driver is required")
		}
		if d.Connection.Timeout < 0 {
			errs = append(errs, where+".connection.timeout must not be negative")
		}
		if len(d.Components) == 0 {
			errs = append(errs, where+" needs at least one component")
		}

		names := make(map[string]bool, len(d.Components))
		for j, comp := range d.Components {
			cwhere := fmt.Sprintf("%s.components[%d]", where, j)
			if comp.Name == "" {
				errs = append(errs, cwhere+".name is required")
			} else if names[comp.Name] {
				errs = append(errs, cwhere+".name "+strconv.Quote(comp.Name)+" is duplicated")
			}
			names[comp.Name] = true

			if comp.Model == "" {
				errs = append(errs, cwhere+".model is required")
			}
			if comp.MoveTimeout < 0 {
				errs = append(errs, cwhere+".move_timeout must not be negative")
			}
		}
	}
	return errs
}

// MoveTimeout returns the component's move timeout, falling back to
// valves.default_move_timeout.
func (c *Config) MoveTimeout(comp ComponentConfig) time.Duration {
	if comp.MoveTimeout > 0 {
		return comp.MoveTimeout
	}
	return c.Valves.DefaultMoveTimeout
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

// AccessTokenTTL returns the JWT lifetime as a Duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
