package main

import (
	"github.com/larsks/carcontrol/internal/api"
	"github.com/larsks/carcontrol/internal/cli"
	_ "github.com/larsks/carcontrol/internal/logsetup"
)

func main() {
	cli.StandardMain(
		func() cli.Configurable { return api.NewConfig() },
		api.NewAPIHandler(),
	)
}
