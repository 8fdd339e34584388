package commands

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uhppoted/uhppoted-app-sync/config"
	"github.com/uhppoted/uhppoted-app-sync/gsheets"
)

const APP = "uhppoted-app-sync"

type Options struct {
	Debug bool
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v", e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type command struct {
	config      string
	credentials string
	spreadsheet string
	area        string
	debug       bool
}

func (c *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&c.config, "config", c.config, "Configuration file path")
	flagset.StringVar(&c.credentials, "credentials", c.credentials, "Path for the service account 'credentials.json' file. Overrides the configuration file")
	flagset.StringVar(&c.spreadsheet, "url", c.spreadsheet, "Spreadsheet URL or ID. Overrides the configuration file")
	flagset.StringVar(&c.area, "range", c.area, "Spreadsheet range e.g. 'Leads!A1:BC'. Overrides the configuration file")

	return flagset
}

// configuration loads the configuration file, applies the command line overrides and
// validates the spreadsheet settings.
func (c *command) configuration() (*config.Config, error) {
	conf, err := c.load()
	if err != nil {
		return nil, err
	}

	if err := c.validate(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// load returns the configuration with the command line overrides applied. If the
// configuration file cannot be loaded it returns the default configuration (with the
// overrides) along with the error.
func (c *command) load() (*config.Config, error) {
	var err error

	conf := config.DefaultConfig(_etc, _var)
	if err = conf.Load(c.config); err != nil {
		conf = config.DefaultConfig(_etc, _var)
		err = fmt.Errorf("could not load configuration from %v (%v)", c.config, err)
	}

	c.overlay(conf)

	return conf, err
}

func (c *command) overlay(conf *config.Config) {
	if v := strings.TrimSpace(c.credentials); v != "" {
		conf.Google.Credentials = v
	}

	if v := strings.TrimSpace(c.spreadsheet); v != "" {
		conf.Google.Spreadsheet = v
	}

	if v := strings.TrimSpace(c.area); v != "" {
		conf.Google.Range = v
	}
}

func (c *command) validate(conf *config.Config) error {
	if strings.TrimSpace(conf.Google.Spreadsheet) == "" {
		return fmt.Errorf("--url is a required option (or 'spreadsheet' in the [google] section of the configuration file)")
	}

	if gsheets.SpreadsheetID(conf.Google.Spreadsheet) == "" {
		return fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	if _, err := gsheets.ParseRange(conf.Google.Range); err != nil {
		return err
	}

	if c.debug {
		debugf("Spreadsheet - ID:%s  range:%s", gsheets.SpreadsheetID(conf.Google.Spreadsheet), conf.Google.Range)
	}

	return nil
}

func worksheet(ctx context.Context, conf *config.Config) (*gsheets.Worksheet, error) {
	credentials, err := os.ReadFile(conf.Google.Credentials)
	if err != nil {
		return nil, err
	}

	defer clear(credentials)

	client, err := gsheets.ServiceAccount{}.Client(ctx, credentials)
	if err != nil {
		return nil, fmt.Errorf("authentication/authorization error (%v)", err)
	}

	return client.Worksheet(ctx, conf.Google.Spreadsheet, conf.Google.Range)
}

func helpOptions(flagset *flag.FlagSet) {
	count := 0
	flag.VisitAll(func(f *flag.Flag) {
		count++
	})

	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
	})

	if count > 0 {
		fmt.Println()
		fmt.Println("  Options:")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
		})
	}
}

func debugf(format string, args ...any) {
	log.Printf("%-5s %s", "DEBUG", fmt.Sprintf(format, args...))
}

func infof(format string, args ...any) {
	log.Printf("%-5s %s", "INFO", fmt.Sprintf(format, args...))
}

func warnf(format string, args ...any) {
	log.Printf("%-5s %s", "WARN", fmt.Sprintf(format, args...))
}
