package carctl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("CARCONTROL_SERVER_URL", "")
	cfg := NewConfig()
	assert.Equal(t, defaultServerURL, cfg.ServerURL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	t.Setenv("CARCONTROL_SERVER_URL", "http://car.local:3000")
	assert.Equal(t, "http://car.local:3000", NewConfig().ServerURL)
}

func TestLoadConfigWithFlagSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server-url = "http://fromfile:3000"
timeout = "3s"
`), 0o600))

	t.Run("file", func(t *testing.T) {
		cfg := NewConfig()
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		cfg.AddFlags(fs)
		require.NoError(t, fs.Parse([]string{"--config", path}))
		require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

		assert.Equal(t, "http://fromfile:3000", cfg.ServerURL)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
	})

	t.Run("flag overrides file", func(t *testing.T) {
		cfg := NewConfig()
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		cfg.AddFlags(fs)
		require.NoError(t, fs.Parse([]string{"--config", path, "--server-url", "http://fromflag:3000"}))
		require.NoError(t, cfg.LoadConfigWithFlagSet(fs))

		assert.Equal(t, "http://fromflag:3000", cfg.ServerURL)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := NewConfig()
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		cfg.AddFlags(fs)
		require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")}))
		assert.Error(t, cfg.LoadConfigWithFlagSet(fs))
	})
}
