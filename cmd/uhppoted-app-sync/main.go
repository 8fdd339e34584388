package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/uhppoted/uhppoted-lib/command"

	"github.com/uhppoted/uhppoted-app-sync/commands"
)

var cli = []uhppoted.Command{
	&commands.VersionCmd,
	&commands.SyncCmd,
	&commands.SetupCmd,
	&commands.GetCmd,
}

var options = commands.Options{
	Debug: false,
}

var help = uhppoted.NewHelp("uhppoted-app-sync", cli, nil)

func main() {
	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	cmd, err := uhppoted.Parse(cli, nil, help)
	if err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		os.Exit(1)
	}

	if cmd == nil {
		help.Execute()
		os.Exit(1)
	}

	if err = cmd.Execute(&options); err != nil {
		fmt.Printf("\nERROR: %v\n\n", err)

		var exit *commands.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}

		os.Exit(1)
	}
}
