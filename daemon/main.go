package daemon

import (
	"context"

	"github.com/actornet/actornet/cli"
	"github.com/actornet/actornet/logger"
)

type Logger = logger.Logger

var DaemonCmd = &cli.Subcommand{
	Use:   "daemon",
	Short: "run the actornet daemon",
	Run: func(subcommand *cli.Subcommand, args []string) error {
		return Run(context.Background(), subcommand.Config())
	},
}
