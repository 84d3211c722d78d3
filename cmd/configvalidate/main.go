package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/larsks/carcontrol/internal/api"
	"github.com/larsks/carcontrol/internal/config"
	"github.com/larsks/carcontrol/internal/version"
)

func main() {
	var (
		versionFlag = pflag.Bool("version", false, "Show version and exit")
		configFile  = pflag.String("config", "", "Configuration file to validate")
		helpFlag    = pflag.BoolP("help", "h", false, "Show help")
	)

	pflag.Parse()

	if *versionFlag {
		version.ShowVersion()
		os.Exit(0)
	}

	if *helpFlag {
		usage()
		os.Exit(0)
	}

	if *configFile == "" {
		*configFile = config.DefaultConfigFile("carcontrol")
	}
	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: --config flag is required\n\n") //nolint:errcheck
		usage()
		os.Exit(1)
	}

	cfg, reg, err := api.CheckConfigFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}

	fmt.Printf("Configuration file %s is valid\n", *configFile)
	fmt.Printf("Listen address: %s, driver: %s\n", cfg.ListenAddr(), cfg.Driver)
	fmt.Printf("Switches (%d):\n", reg.Len())
	for _, def := range reg.All() {
		polarity := "active-high"
		if def.ActiveLow {
			polarity = "active-low"
		}
		fmt.Printf("  %s: pin %d, %s\n", def, def.Pin, polarity)
	}
}

func usage() {
	//nolint:errcheck
	fmt.Fprintf(os.Stderr, `Usage: %s [--config FILE]

Validate a carcontrol server configuration file. Unknown keys, duplicate
switch ids and shared pins are errors.

Options:
`, os.Args[0])
	pflag.PrintDefaults()
}
