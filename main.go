// See cli package.
package main

import (
	"github.com/actornet/actornet/cli"
	"github.com/actornet/actornet/client"
	"github.com/actornet/actornet/daemon"
)

func init() {
	cli.AddSubcommand(daemon.DaemonCmd)
	cli.AddSubcommand(client.ConfigcheckCmd)
	cli.AddSubcommand(client.VersionCmd)
}

func main() {
	cli.Run()
}
