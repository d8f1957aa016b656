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
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  id: "bridge-test"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
devices:
  - id: "kitchen"
    name: "Kitchen Pulse"
    address: "192.168.1.40"
  - id: "lounge"
    address: "192.168.1.41"
    port: 11001
    polling: 10
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "bridge-test" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "bridge-test")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}

	kitchen := cfg.Devices[0]
	if kitchen.Port != DefaultBluOSPort {
		t.Errorf("kitchen port = %d, want default %d", kitchen.Port, DefaultBluOSPort)
	}
	if kitchen.Polling != DefaultPollInterval {
		t.Errorf("kitchen polling = %d, want default %d", kitchen.Polling, DefaultPollInterval)
	}

	lounge := cfg.Devices[1]
	if lounge.Port != 11001 || lounge.Polling != 10 {
		t.Errorf("lounge = %+v, want port 11001 polling 10", lounge)
	}

	if cfg.GetPingInterval() != 63*time.Second {
		t.Errorf("GetPingInterval() = %v, want 63s", cfg.GetPingInterval())
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
	content := `
bridge:
  id: ""
devices:
  - id: "kitchen"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"bridge.id is required", "devices[0].address is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BLUESOUND_DATABASE_PATH", "/var/lib/bluesound.db")
	t.Setenv("BLUESOUND_MQTT_HOST", "broker.local")
	t.Setenv("BLUESOUND_MQTT_PORT", "8883")
	t.Setenv("BLUESOUND_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "bridge:\n  id: \"b1\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/bluesound.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	validDevice := DeviceConfig{ID: "kitchen", Address: "10.0.0.2", Port: 11000, Polling: 5}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "valid device",
			mutate:  func(c *Config) { c.Devices = []DeviceConfig{validDevice} },
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name: "api port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "zero ping interval",
			mutate:  func(c *Config) { c.BluOS.PingInterval = 0 },
			wantErr: true,
		},
		{
			name:    "duplicate device id",
			mutate:  func(c *Config) { c.Devices = []DeviceConfig{validDevice, validDevice} },
			wantErr: true,
		},
		{
			name: "zero polling interval",
			mutate: func(c *Config) {
				d := validDevice
				d.Polling = 0
				c.Devices = []DeviceConfig{d}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := Defaults()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetHTTPTimeout(); got != 5*time.Second {
		t.Errorf("GetHTTPTimeout() = %v, want 5s", got)
	}
}
