package carctl

import (
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/larsks/carcontrol/internal/config"
)

const (
	appName          = "carctl"
	defaultServerURL = "http://localhost:3000"
	defaultTimeout   = 10 * time.Second
)

// Config holds the carctl configuration
type Config struct {
	ServerURL  string        `mapstructure:"server-url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ConfigFile string        `mapstructure:"config-file"`
}

func getDefaultServerURL() string {
	if url := os.Getenv("CARCONTROL_SERVER_URL"); url != "" {
		return url
	}
	return defaultServerURL
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		ServerURL: getDefaultServerURL(),
		Timeout:   defaultTimeout,
	}
}

// AddFlags adds command-line flags for all configuration options
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", "", "Config file to use")
	fs.StringVar(&c.ServerURL, "server-url", c.ServerURL, "API server URL")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Request timeout")
}

// LoadConfigWithFlagSet reads the config file named by --config, or
// $XDG_CONFIG_HOME/carctl/carctl.toml if present, then applies flags.
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	if c.ConfigFile == "" {
		c.ConfigFile = config.DefaultConfigFile(appName)
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(map[string]any{
		"server-url": getDefaultServerURL(),
		"timeout":    defaultTimeout,
	})

	return loader.LoadConfigWithFlagSet(c, fs)
}
