package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/slimpack/cmd/slimpack/commands"
	ferrors "git.home.luguber.info/inful/slimpack/internal/foundation/errors"
	"git.home.luguber.info/inful/slimpack/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("slimpack"),
		kong.Description("Build, watch, serve and test a TypeScript web application."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: cli.Logger()}
	err := parser.Run(global, cli)

	adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
	os.Exit(adapter.Report(err))
}
