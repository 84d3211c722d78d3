package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigLoader loads configuration with the precedence
// defaults < config file < explicitly set flags.
type ConfigLoader struct {
	configFile string
	defaults   map[string]any
	strictMode bool
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		defaults: make(map[string]any),
	}
}

// SetConfigFile sets the configuration file path. An empty path means no file.
func (cl *ConfigLoader) SetConfigFile(configFile string) {
	cl.configFile = configFile
}

// SetDefault sets a default value for a configuration key.
func (cl *ConfigLoader) SetDefault(key string, value any) {
	cl.defaults[key] = value
}

// SetDefaults sets multiple default values at once.
func (cl *ConfigLoader) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		cl.defaults[key] = value
	}
}

// SetStrictMode makes unknown configuration keys an error.
func (cl *ConfigLoader) SetStrictMode(strict bool) {
	cl.strictMode = strict
}

// LoadConfig loads configuration using flags from pflag.CommandLine.
func (cl *ConfigLoader) LoadConfig(config any) error {
	return cl.LoadConfigWithFlagSet(config, pflag.CommandLine)
}

// LoadConfigWithFlagSet populates config, which must be a pointer to a
// struct with mapstructure tags. Only flags that were explicitly set on fs
// override the file; flag names are used as keys, so "mqtt.server" maps to
// the server key of the [mqtt] table.
func (cl *ConfigLoader) LoadConfigWithFlagSet(config any, fs *pflag.FlagSet) error {
	v := viper.New()

	for key, value := range cl.defaults {
		v.SetDefault(key, value)
	}

	if cl.configFile != "" {
		if err := cl.readConfigFile(v); err != nil {
			return err
		}
	}

	if fs != nil {
		fs.Visit(func(flag *pflag.Flag) {
			if flag.Name == "config" {
				return
			}
			if sv, ok := flag.Value.(pflag.SliceValue); ok {
				v.Set(flag.Name, sv.GetSlice())
				return
			}
			v.Set(flag.Name, flag.Value.String())
		})
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	decoderConfig := &mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      cl.strictMode,
		DecodeHook:       hook,
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to create decoder: %v", ErrConfigUnmarshal, err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		if cl.configFile != "" {
			return fmt.Errorf("%w: %s: %v", ErrConfigUnmarshal, cl.configFile, err)
		}
		return fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
	}

	return nil
}

// readConfigFile reads the file with environment variable references
// expanded. References to unset variables are left as written.
func (cl *ConfigLoader) readConfigFile(v *viper.Viper) error {
	content, err := os.ReadFile(cl.configFile)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrConfigFileRead, cl.configFile, err)
	}

	expanded := os.Expand(string(content), func(name string) string {
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return "${" + name + "}"
	})

	ext := strings.TrimPrefix(filepath.Ext(cl.configFile), ".")
	if ext == "" {
		ext = "toml"
	}
	v.SetConfigType(ext)

	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return fmt.Errorf("%w %s: %v", ErrConfigFileRead, cl.configFile, err)
	}
	return nil
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/<app>/<app>.toml if that file
// exists, and an empty string otherwise.
func DefaultConfigFile(app string) string {
	path, err := xdg.SearchConfigFile(filepath.Join(app, app+".toml"))
	if err != nil {
		return ""
	}
	return path
}
