package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"

	"github.com/google/subcommands"
)

const version = "0.3.0"

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the folio version" }
func (*versionCmd) Usage() string          { return "folio version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("folio %s %s/%s %s\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	return subcommands.ExitSuccess
}
