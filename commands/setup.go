package commands

import (
	"context"
	"flag"
	"fmt"
)

var SetupCmd = Setup{
	command: command{
		config: DEFAULT_CONFIG,
		debug:  false,
	},
}

type Setup struct {
	command
}

func (cmd *Setup) Name() string {
	return "setup"
}

func (cmd *Setup) Description() string {
	return "Initialises the worksheet header row"
}

func (cmd *Setup) Usage() string {
	return "[--config <file>] [--url <url>] [--range <range>]"
}

func (cmd *Setup) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] setup [options]\n", APP)
	fmt.Println()
	fmt.Println("  Clears the worksheet range and writes the configured header row (by default the ERP")
	fmt.Println("  report columns followed by the enrichment columns). EXISTING DATA IN THE RANGE IS REMOVED.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    uhppoted-app-sync setup --credentials "service_account.json" \`)
	fmt.Println(`                            --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                            --range "Leads!A1:BC"`)
	fmt.Println()
}

func (cmd *Setup) FlagSet() *flag.FlagSet {
	return cmd.flagset("setup")
}

func (cmd *Setup) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	conf, err := cmd.configuration()
	if err != nil {
		return err
	}

	header := conf.Google.Header
	if len(header) == 0 {
		return fmt.Errorf("no header columns configured")
	}

	ctx := context.Background()

	sheet, err := worksheet(ctx, conf)
	if err != nil {
		return err
	}

	if err := sheet.Clear(ctx); err != nil {
		return fmt.Errorf("error clearing worksheet (%v)", err)
	}

	if err := sheet.Update(ctx, 0, header); err != nil {
		return err
	}

	if err := sheet.FormatHeader(ctx); err != nil {
		return fmt.Errorf("error formatting header row (%v)", err)
	}

	infof("Initialised worksheet %v with %v columns", conf.Google.Range, len(header))

	if cmd.debug {
		for i, h := range header {
			debugf("  %2d. %v", i+1, h)
		}
	}

	return nil
}
