package main

import (
	"github.com/larsks/carcontrol/internal/carctl"
	"github.com/larsks/carcontrol/internal/cli"
	_ "github.com/larsks/carcontrol/internal/logsetup"
)

func main() {
	cli.SubCommandMain(
		func() cli.Configurable { return carctl.NewConfig() },
		carctl.NewHandler(),
	)
}
