package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "bench-a"
database:
  path: "/tmp/test.db"
api:
  port: 9090
valves:
  model_paths: ["models", "/etc/benchlink/extra.yaml"]
  default_move_timeout: 5s
devices:
  - id: hplc-1
    name: HPLC injector
    driver: vici
    connection:
      type: serial
      address: /dev/ttyUSB0
      baud_rate: 9600
      timeout: 1500ms
    components:
      - name: inject
        model: injection-6port
      - name: column
        model: selector-6
        address: "2"
        move_timeout: 20s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "bench-a" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "bench-a")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Valves.DefaultMoveTimeout != 5*time.Second {
		t.Errorf("DefaultMoveTimeout = %v, want 5s", cfg.Valves.DefaultMoveTimeout)
	}

	wantPaths := []string{filepath.Join(filepath.Dir(path), "models"), "/etc/benchlink/extra.yaml"}
	for i, want := range wantPaths {
		if cfg.Valves.ModelPaths[i] != want {
			t.Errorf("ModelPaths[%d] = %q, want %q", i, cfg.Valves.ModelPaths[i], want)
		}
	}

	if len(cfg.Devices) != 1 {
		t.Fatalf("len(Devices) = %d, want 1", len(cfg.Devices))
	}
	dev := cfg.Devices[0]
	if dev.Connection.Timeout != 1500*time.Millisecond {
		t.Errorf("Connection.Timeout = %v, want 1.5s", dev.Connection.Timeout)
	}
	if got := cfg.MoveTimeout(dev.Components[0]); got != 5*time.Second {
		t.Errorf("MoveTimeout(inject) = %v, want default 5s", got)
	}
	if got := cfg.MoveTimeout(dev.Components[1]); got != 20*time.Second {
		t.Errorf("MoveTimeout(column) = %v, want 20s", got)
	}

	// Untouched sections keep their defaults.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: ""
`))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"
	valve := func(name, model string) ComponentConfig { return ComponentConfig{Name: name, Model: model} }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{
			name:    "influx without URL",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "bench" },
			wantErr: "influxdb.url",
		},
		{
			name:   "security off ignores secret",
			mutate: func(c *Config) { c.Security.JWT.Secret = "" },
		},
		{
			name:    "security on without secret",
			mutate:  func(c *Config) { c.Security.Enabled = true },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "security on with short secret",
			mutate:  func(c *Config) { c.Security.Enabled = true; c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:   "security on with good secret",
			mutate: func(c *Config) { c.Security.Enabled = true; c.Security.JWT.Secret = validJWTSecret },
		},
		{
			name:    "zero move timeout",
			mutate:  func(c *Config) { c.Valves.DefaultMoveTimeout = 0 },
			wantErr: "default_move_timeout",
		},
		{
			name: "valid device",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "sim", Driver: "simulated", Components: []ComponentConfig{valve("v1", "selector-6")}}}
			},
		},
		{
			name: "duplicate device",
			mutate: func(c *Config) {
				d := DeviceConfig{ID: "sim", Driver: "simulated", Components: []ComponentConfig{valve("v1", "selector-6")}}
				c.Devices = []DeviceConfig{d, d}
			},
			wantErr: "devices[sim].id is duplicated",
		},
		{
			name: "device without driver",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "sim", Components: []ComponentConfig{valve("v1", "selector-6")}}}
			},
			wantErr: "driver is required",
		},
		{
			name: "device without components",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "sim", Driver: "simulated"}}
			},
			wantErr: "at least one component",
		},
		{
			name: "duplicate component",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "sim", Driver: "simulated", Components: []ComponentConfig{
					valve("v1", "selector-6"), valve("v1", "selector-8"),
				}}}
			},
			wantErr: `"v1" is duplicated`,
		},
		{
			name: "component without model",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "sim", Driver: "simulated", Components: []ComponentConfig{valve("v1", "")}}}
			},
			wantErr: "model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsEveryProblem(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 15}},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.AccessTokenTTL(); got != 15*time.Minute {
		t.Errorf("AccessTokenTTL() = %v, want 15m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("BENCHLINK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BENCHLINK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BENCHLINK_MQTT_USERNAME", "testuser")
	t.Setenv("BENCHLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("BENCHLINK_API_HOST", "192.168.1.1")
	t.Setenv("BENCHLINK_API_PORT", "8181")
	t.Setenv("BENCHLINK_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("BENCHLINK_LOG_LEVEL", "debug")
	t.Setenv("BENCHLINK_MODEL_PATHS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("BENCHLINK_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	if cfg.API.Port != 8181 {
		t.Errorf("API.Port = %d, want 8181", cfg.API.Port)
	}
	if len(cfg.Valves.ModelPaths) != 2 || cfg.Valves.ModelPaths[1] != "/b" {
		t.Errorf("Valves.ModelPaths = %v, want [/a /b]", cfg.Valves.ModelPaths)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("BENCHLINK_API_PORT", "eighty")
	applyEnvOverrides(cfg)
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("BENCHLINK_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("BENCHLINK_CONFIG", "/etc/benchlink.yaml")
	if got := Path(); got != "/etc/benchlink.yaml" {
		t.Errorf("Path() = %q, want /etc/benchlink.yaml", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if !cfg.Telemetry.Prometheus {
		t.Error("defaultConfig should enable the Prometheus endpoint")
	}
}
