package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cssbuilder/cmd/cssbuilder/commands"
	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("cssbuilder"),
		kong.Description("Compile source style sheets into their runtime siblings, once or continuously."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default()}
	if err := ctx.Run(global, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
