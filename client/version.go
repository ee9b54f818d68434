package client

import (
	"fmt"

	"github.com/actornet/actornet/cli"
	"github.com/actornet/actornet/version"
)

var VersionCmd = &cli.Subcommand{
	Use:             "version",
	Short:           "print version of actornet binary",
	NoRequireConfig: true,
	Run: func(subcommand *cli.Subcommand, args []string) error {
		fmt.Println(version.NewVersionInformation().String())
		return nil
	},
}
