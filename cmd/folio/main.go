// Command folio runs allocation backtests over stored daily bars.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commander.Execute(ctx)
	cancel()
	os.Exit(int(code))
}

var commands = []subcommands.Command{
	&runCmd{},
	&synthCmd{},
	&indicatorsCmd{},
	&runsCmd{},
	&presetsCmd{},
	&serveCmd{},
	&versionCmd{},
}
