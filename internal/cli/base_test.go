package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConfig struct {
	ConfigFile string
	TestValue  string
	loaded     bool
	loadErr    error
}

func (m *mockConfig) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&m.ConfigFile, "config", "", "Config file")
	fs.StringVar(&m.TestValue, "test-value", "default", "Test value")
}

func (m *mockConfig) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	m.loaded = true
	return m.loadErr
}

type mockHandler struct {
	started bool
	err     error
}

func (m *mockHandler) Start(config Configurable) error {
	m.started = true
	return m.err
}

func newTestCLI() (*BaseCLI, *bytes.Buffer) {
	var out bytes.Buffer
	return NewBaseCLI("testprog", &out, &out), &out
}

func TestParseArgs_Version(t *testing.T) {
	cli, _ := newTestCLI()
	cfg := &mockConfig{}

	cmdArgs, err := cli.ParseArgs([]string{"--version"}, func() Configurable { return cfg })
	require.NoError(t, err)
	assert.Equal(t, CommandVersion, cmdArgs.Command)
	assert.False(t, cfg.loaded, "config is not loaded for --version")
}

func TestParseArgs_Start(t *testing.T) {
	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cmdArgs, err := cli.ParseArgsWithFlagSet([]string{"--test-value", "custom", "status", "switch1"},
		func() Configurable { return &mockConfig{} }, fs)
	require.NoError(t, err)

	assert.Equal(t, CommandStart, cmdArgs.Command)
	assert.Equal(t, []string{"status", "switch1"}, cmdArgs.Args)

	cfg, ok := cmdArgs.Config.(*mockConfig)
	require.True(t, ok)
	assert.Equal(t, "custom", cfg.TestValue)
	assert.True(t, cfg.loaded)
}

func TestParseArgs_Help(t *testing.T) {
	cli, out := newTestCLI()

	cmdArgs, err := cli.ParseArgs([]string{"--help"}, func() Configurable { return &mockConfig{} })
	require.NoError(t, err)
	assert.Equal(t, CommandHelp, cmdArgs.Command)
	assert.Contains(t, out.String(), "test-value")
}

func TestParseArgs_Errors(t *testing.T) {
	cli, _ := newTestCLI()

	_, err := cli.ParseArgs([]string{"--no-such-flag"}, func() Configurable { return &mockConfig{} })
	assert.Error(t, err)

	loadErr := errors.New("bad config")
	_, err = cli.ParseArgs([]string{}, func() Configurable { return &mockConfig{loadErr: loadErr} })
	assert.ErrorIs(t, err, loadErr)
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name        string
		command     string
		wantStarted bool
		wantErr     bool
		wantOutput  string
	}{
		{name: "version", command: CommandVersion, wantOutput: "testprog "},
		{name: "help", command: CommandHelp},
		{name: "start", command: CommandStart, wantStarted: true},
		{name: "unknown", command: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := newTestCLI()
			handler := &mockHandler{}

			err := cli.Execute(&CommandArgs{Command: tt.command, Config: &mockConfig{}}, handler)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStarted, handler.started)
			assert.Contains(t, out.String(), tt.wantOutput)
		})
	}
}

func TestExecute_StartError(t *testing.T) {
	cli, _ := newTestCLI()
	startErr := errors.New("boom")

	err := cli.Execute(&CommandArgs{Command: CommandStart, Config: &mockConfig{}}, &mockHandler{err: startErr})
	assert.ErrorIs(t, err, startErr)
}

type mockSubCommand struct {
	verbose bool
	got     *CommandArgs
}

func (m *mockSubCommand) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&m.verbose, "verbose", "v", false, "Verbose output")
}

func (m *mockSubCommand) Execute(cmdArgs *CommandArgs) error {
	m.got = cmdArgs
	return nil
}

func TestRunSubCommand(t *testing.T) {
	cli, _ := newTestCLI()
	handler := &mockSubCommand{}

	err := cli.RunSubCommand([]string{"-v", "toggle", "switch1"}, func() Configurable { return &mockConfig{} }, handler)
	require.NoError(t, err)
	require.NotNil(t, handler.got)
	assert.True(t, handler.verbose)
	assert.Equal(t, CommandStart, handler.got.Command)
	assert.Equal(t, []string{"toggle", "switch1"}, handler.got.Args)
}

func TestRunSubCommand_Version(t *testing.T) {
	cli, out := newTestCLI()
	handler := &mockSubCommand{}

	err := cli.RunSubCommand([]string{"--version"}, func() Configurable { return &mockConfig{} }, handler)
	require.NoError(t, err)
	assert.Nil(t, handler.got)
	assert.Contains(t, out.String(), "testprog ")
}

func TestRunSubCommand_Help(t *testing.T) {
	cli, _ := newTestCLI()
	handler := &mockSubCommand{}

	err := cli.RunSubCommand([]string{"--help"}, func() Configurable { return &mockConfig{} }, handler)
	require.NoError(t, err)
	require.NotNil(t, handler.got)
	assert.Equal(t, CommandHelp, handler.got.Command)
}
