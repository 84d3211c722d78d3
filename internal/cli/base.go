// Package cli provides the flag parsing and dispatch shared by the
// carcontrol commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/larsks/carcontrol/internal/version"
)

// Commands understood by Execute.
const (
	CommandStart   = "start"
	CommandVersion = "version"
	CommandHelp    = "help"
)

// Configurable represents a type that can be configured via flags and config files.
type Configurable interface {
	AddFlags(fs *pflag.FlagSet)
	LoadConfigWithFlagSet(fs *pflag.FlagSet) error
}

// CommandHandler runs a command once configuration is loaded.
type CommandHandler interface {
	Start(config Configurable) error
}

// SubCommandHandler runs a command named by the first positional
// argument, as in "carctl toggle switch1".
type SubCommandHandler interface {
	AddFlags(fs *pflag.FlagSet)
	Execute(cmdArgs *CommandArgs) error
}

// BaseCLI provides common CLI functionality.
type BaseCLI struct {
	program string
	stdout  io.Writer
	stderr  io.Writer
}

// NewBaseCLI creates a new BaseCLI instance.
func NewBaseCLI(program string, stdout, stderr io.Writer) *BaseCLI {
	return &BaseCLI{
		program: program,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// CommandArgs represents parsed command line arguments.
type CommandArgs struct {
	Command string
	Config  Configurable
	Args    []string
}

// ParseArgs parses args with a fresh flag set named after the program.
func (c *BaseCLI) ParseArgs(args []string, configFactory func() Configurable) (*CommandArgs, error) {
	fs := pflag.NewFlagSet(c.program, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return c.ParseArgsWithFlagSet(args, configFactory, fs)
}

// ParseArgsWithFlagSet handles --version and --help and otherwise loads
// the configuration. Positional arguments are returned in Args.
func (c *BaseCLI) ParseArgsWithFlagSet(args []string, configFactory func() Configurable, fs *pflag.FlagSet) (*CommandArgs, error) {
	versionFlag := fs.Bool("version", false, "Show version and exit")

	cfg := configFactory()
	cfg.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return &CommandArgs{Command: CommandHelp, Config: cfg}, nil
		}
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *versionFlag {
		return &CommandArgs{Command: CommandVersion, Config: cfg}, nil
	}

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &CommandArgs{Command: CommandStart, Config: cfg, Args: fs.Args()}, nil
}

// Execute runs the parsed command.
func (c *BaseCLI) Execute(cmdArgs *CommandArgs, handler CommandHandler) error {
	switch cmdArgs.Command {
	case CommandVersion:
		version.Fprint(c.stdout, c.program)
		return nil
	case CommandHelp:
		return nil
	case CommandStart:
		return handler.Start(cmdArgs.Config)
	default:
		return fmt.Errorf("unknown command: %s", cmdArgs.Command)
	}
}

// RunSubCommand parses args with the handler's flags added and passes the
// result to the handler. --version is handled here; help is left to the
// handler.
func (c *BaseCLI) RunSubCommand(args []string, configFactory func() Configurable, handler SubCommandHandler) error {
	fs := pflag.NewFlagSet(c.program, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	handler.AddFlags(fs)

	cmdArgs, err := c.ParseArgsWithFlagSet(args, configFactory, fs)
	if err != nil {
		return err
	}

	if cmdArgs.Command == CommandVersion {
		version.Fprint(c.stdout, c.program)
		return nil
	}
	return handler.Execute(cmdArgs)
}

// SubCommandMain is StandardMain for tools driven by a command argument.
func SubCommandMain(configFactory func() Configurable, handler SubCommandHandler) {
	cli := NewBaseCLI(filepath.Base(os.Args[0]), os.Stdout, os.Stderr)
	if err := cli.RunSubCommand(os.Args[1:], configFactory, handler); err != nil {
		log.Fatalf("error: %v", err)
	}
}

// StandardMain parses os.Args, loads configuration and runs handler.
func StandardMain(configFactory func() Configurable, handler CommandHandler) {
	cli := NewBaseCLI(filepath.Base(os.Args[0]), os.Stdout, os.Stderr)

	cmdArgs, err := cli.ParseArgs(os.Args[1:], configFactory)
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	if err := cli.Execute(cmdArgs, handler); err != nil {
		log.Fatalf("error: %v", err)
	}
}
