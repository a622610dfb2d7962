package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"btscout/internal/cli"
	"btscout/internal/commands"
)

func main() {
	root := &cli.CLI{}
	ctx := kong.Parse(root,
		kong.Name("btscout"),
		kong.Description("Scan for nearby Bluetooth devices and explore the services they expose."),
		kong.UsageOnError(),
	)

	err := ctx.Run(root)
	// An empty scan already printed its explanation; just set the status.
	if errors.Is(err, commands.ErrNoDevices) {
		os.Exit(1)
	}
	ctx.FatalIfErrorf(err)
}
