package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/carcontrol/internal/config"
	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/larsks/carcontrol/internal/registry"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := NewConfig()

	assert.Equal(t, "", cfg.ListenAddress)
	assert.Equal(t, DefaultListenPort, cfg.ListenPort)
	assert.Equal(t, pindriver.BackendAuto, cfg.Driver)
	assert.Equal(t, pindriver.DefaultChip, cfg.GPIOChip)
	assert.Equal(t, pindriver.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "carcontrol", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.MQTT.Server)
	assert.Equal(t, ":3000", cfg.ListenAddr())
}

func TestNewConfig_PortEnv(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"8080", 8080},
		{"not-a-port", DefaultListenPort},
		{"-1", DefaultListenPort},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("PORT", tt.env)
			assert.Equal(t, tt.want, NewConfig().ListenPort)
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carcontrol.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigWithFlagSet_File(t *testing.T) {
	path := writeConfig(t, `
listen-address = "127.0.0.1"
listen-port = 8081
driver = "simulated"
write-timeout = "250ms"

[mqtt]
server = "tcp://broker:1883"
topic-prefix = "van"

[[switches]]
id = "headlights"
pin = 5
name = "Headlights"
description = "Front lights"

[[switches]]
id = "horn"
pin = 6
active-low = true
`)

	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

	assert.Equal(t, "127.0.0.1:8081", cfg.ListenAddr())
	assert.Equal(t, pindriver.BackendSimulated, cfg.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Server)
	assert.Equal(t, "van", cfg.MQTT.TopicPrefix)
	assert.Equal(t, []registry.Definition{
		{ID: "headlights", Pin: 5, Name: "Headlights", Description: "Front lights"},
		{ID: "horn", Pin: 6, ActiveLow: true},
	}, cfg.Switches)
}

func TestLoadConfigWithFlagSet_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
listen-port = 8081
driver = "gpiocdev"
`)

	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--config", path,
		"--listen-port", "9000",
		"--driver", "simulated",
		"--shutdown-timeout", "2s",
		"--cors-origins", "http://a.example,http://b.example",
		"--mqtt.server", "mqtt://localhost:1883",
	}))
	require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

	assert.Equal(t, 9000, cfg.ListenPort)
	assert.Equal(t, pindriver.BackendSimulated, cfg.Driver)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "mqtt://localhost:1883", cfg.MQTT.Server)
}

func TestLoadConfigWithFlagSet_DefaultSwitches(t *testing.T) {
	path := writeConfig(t, `driver = "simulated"`)

	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

	assert.Equal(t, registry.DefaultDefinitions(), cfg.Switches)
}

func TestLoadConfigWithFlagSet_EnvExpansion(t *testing.T) {
	t.Setenv("CARCONTROL_TEST_BROKER", "tcp://envbroker:1883")
	path := writeConfig(t, `
[mqtt]
server = "${CARCONTROL_TEST_BROKER}"
`)

	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

	assert.Equal(t, "tcp://envbroker:1883", cfg.MQTT.Server)
}

func TestLoadConfigWithFlagSet_MissingFile(t *testing.T) {
	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}))
	assert.Error(t, cfg.LoadConfigWithFlagSet(fs))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"port zero", func(c *Config) { c.ListenPort = 0 }, ErrInvalidConfig},
		{"port too large", func(c *Config) { c.ListenPort = 70000 }, ErrInvalidConfig},
		{"unknown driver", func(c *Config) { c.Driver = "piface" }, pindriver.ErrUnknownBackend},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, ErrInvalidConfig},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, ErrInvalidConfig},
		{"zero observer queue", func(c *Config) { c.ObserverQueue = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckConfigFile(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantErr      error
		wantSwitches int
	}{
		{
			name: "valid",
			content: `
driver = "simulated"

[[switches]]
id = "headlights"
pin = 5

[[switches]]
id = "horn"
pin = 6
`,
			wantSwitches: 2,
		},
		{
			name:         "defaults",
			content:      `listen-port = 8080`,
			wantSwitches: 8,
		},
		{
			name: "unknown key",
			content: `
listen-port = 8080
blink-period = 2
`,
			wantErr: config.ErrConfigUnmarshal,
		},
		{
			name: "duplicate pin",
			content: `
[[switches]]
id = "a"
pin = 5

[[switches]]
id = "b"
pin = 5
`,
			wantErr: registry.ErrDuplicatePin,
		},
		{
			name:    "bad driver",
			content: `driver = "piface"`,
			wantErr: pindriver.ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, reg, err := CheckConfigFile(writeConfig(t, tt.content))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg)
			assert.Equal(t, tt.wantSwitches, reg.Len())
		})
	}
}
