package api

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/larsks/carcontrol/internal/broadcast"
	"github.com/larsks/carcontrol/internal/config"
	"github.com/larsks/carcontrol/internal/mqtt"
	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/larsks/carcontrol/internal/registry"
)

// DefaultListenPort is used unless overridden by PORT, the config file or --listen-port.
const DefaultListenPort = 3000

const (
	DefaultShutdownTimeout = 5 * time.Second
	appName                = "carcontrol"
)

type (
	MQTTConfig struct {
		Server      string `mapstructure:"server"`
		TopicPrefix string `mapstructure:"topic-prefix"`
		ClientID    string `mapstructure:"client-id"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
	}

	Config struct {
		ConfigFile      string                `mapstructure:"config-file"`
		ListenAddress   string                `mapstructure:"listen-address"`
		ListenPort      int                   `mapstructure:"listen-port"`
		Driver          string                `mapstructure:"driver"`
		GPIOChip        string                `mapstructure:"gpio-chip"`
		WriteTimeout    time.Duration         `mapstructure:"write-timeout"`
		ShutdownTimeout time.Duration         `mapstructure:"shutdown-timeout"`
		ObserverQueue   int                   `mapstructure:"observer-queue"`
		CORSOrigins     []string              `mapstructure:"cors-origins"`
		MQTT            MQTTConfig            `mapstructure:"mqtt"`
		Switches        []registry.Definition `mapstructure:"switches"`

		// strict rejects unknown keys in the config file.
		strict bool
	}
)

// NewConfig creates a new Config instance with default values. The PORT
// environment variable, if set, replaces the default listen port.
func NewConfig() *Config {
	return &Config{
		ListenPort:      defaultListenPort(),
		Driver:          pindriver.BackendAuto,
		GPIOChip:        pindriver.DefaultChip,
		WriteTimeout:    pindriver.DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		ObserverQueue:   broadcast.DefaultQueueSize,
		CORSOrigins:     []string{"*"},
		MQTT: MQTTConfig{
			TopicPrefix: mqtt.DefaultTopicPrefix,
			ClientID:    appName,
		},
	}
}

func defaultListenPort() int {
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		return port
	}
	return DefaultListenPort
}

// AddFlags adds pflag flags for the configuration.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", "", "Config file to use")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Listen address for http server")
	fs.IntVar(&c.ListenPort, "listen-port", c.ListenPort, "Listen port for http server")
	fs.StringVar(&c.Driver, "driver", c.Driver, "Pin driver (auto, gpiocdev, periph, simulated)")
	fs.StringVar(&c.GPIOChip, "gpio-chip", c.GPIOChip, "GPIO chip for the gpiocdev driver")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "Maximum time for a single pin write")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Deadline for turning switches off at exit")
	fs.IntVar(&c.ObserverQueue, "observer-queue", c.ObserverQueue, "Messages queued per client before it is disconnected")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Allowed CORS origins")
	fs.StringVar(&c.MQTT.Server, "mqtt.server", c.MQTT.Server, "MQTT broker URL (empty to disable)")
	fs.StringVar(&c.MQTT.TopicPrefix, "mqtt.topic-prefix", c.MQTT.TopicPrefix, "MQTT topic prefix")
	fs.StringVar(&c.MQTT.ClientID, "mqtt.client-id", c.MQTT.ClientID, "MQTT client id")
}

// LoadConfig loads the configuration using pflag.CommandLine.
func (c *Config) LoadConfig() error {
	return c.LoadConfigWithFlagSet(pflag.CommandLine)
}

// LoadConfigWithFlagSet loads the configuration file (the --config flag, or
// $XDG_CONFIG_HOME/carcontrol/carcontrol.toml if it exists) and applies
// explicitly set flags on top.
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	configFile := c.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigFile(appName)
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(configFile)
	loader.SetStrictMode(c.strict)
	loader.SetDefaults(map[string]any{
		"listen-address":    c.ListenAddress,
		"listen-port":       c.ListenPort,
		"driver":            c.Driver,
		"gpio-chip":         c.GPIOChip,
		"write-timeout":     c.WriteTimeout,
		"shutdown-timeout":  c.ShutdownTimeout,
		"observer-queue":    c.ObserverQueue,
		"cors-origins":      c.CORSOrigins,
		"mqtt.server":       c.MQTT.Server,
		"mqtt.topic-prefix": c.MQTT.TopicPrefix,
		"mqtt.client-id":    c.MQTT.ClientID,
	})

	if err := loader.LoadConfigWithFlagSet(c, fs); err != nil {
		return err
	}
	c.ConfigFile = configFile

	if len(c.Switches) == 0 {
		c.Switches = registry.DefaultDefinitions()
	}

	return c.Validate()
}

// CheckConfigFile loads path with unknown keys treated as errors and
// validates the switch table. No pins are opened.
func CheckConfigFile(path string) (*Config, *registry.Registry, error) {
	c := NewConfig()
	c.ConfigFile = path
	c.strict = true

	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	if err := c.LoadConfigWithFlagSet(fs); err != nil {
		return nil, nil, err
	}

	reg, err := registry.Load(c.Switches)
	if err != nil {
		return nil, nil, err
	}
	return c, reg, nil
}

// Validate checks values that the loader cannot.
func (c *Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen-port %d", ErrInvalidConfig, c.ListenPort)
	}
	switch c.Driver {
	case pindriver.BackendAuto, pindriver.BackendGPIOCDev, pindriver.BackendPeriph, pindriver.BackendSimulated:
	default:
		return fmt.Errorf("%w: %s", pindriver.ErrUnknownBackend, c.Driver)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write-timeout must be positive", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown-timeout must be positive", ErrInvalidConfig)
	}
	if c.ObserverQueue <= 0 {
		return fmt.Errorf("%w: observer-queue must be positive", ErrInvalidConfig)
	}
	return nil
}

// ListenAddr returns the address the http server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}
