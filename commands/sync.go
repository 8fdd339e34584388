package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/uhppoted/uhppoted-app-sync/config"
	"github.com/uhppoted/uhppoted-app-sync/enrich"
	"github.com/uhppoted/uhppoted-app-sync/gsheets"
	"github.com/uhppoted/uhppoted-app-sync/job"
	"github.com/uhppoted/uhppoted-app-sync/records"
)

var SyncCmd = Sync{
	command: command{
		config: DEFAULT_CONFIG,
		debug:  false,
	},

	dryrun: false,
}

type Sync struct {
	command
	file     string
	sheet    string
	logfile  string
	lockfile string
	noenrich bool
	dryrun   bool
}

func (cmd *Sync) Name() string {
	return "sync"
}

func (cmd *Sync) Description() string {
	return "Synchronises a local lead export with a Google Sheets worksheet"
}

func (cmd *Sync) Usage() string {
	return "[--config <file>] [--url <url>] [--range <range>] [--file <file>]"
}

func (cmd *Sync) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] sync [options]\n", APP)
	fmt.Println()
	fmt.Println("  Appends records in the local export that are missing from the worksheet and updates")
	fmt.Println("  worksheet rows that are older than the local record. Intended to be run from cron.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Exit codes:")
	fmt.Println()
	for _, r := range []job.Reason{job.Unknown, job.CredentialMissing, job.DependencyMissing, job.NoConnectivity, job.AuthFailed, job.SheetNotFound, job.PermissionDenied, job.PartialWriteFailure, job.AlreadyRunning} {
		fmt.Printf("    %-3v %v\n", job.Outcome{Reason: r}.ExitCode(), r)
	}

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    uhppoted-app-sync --debug sync --config "/usr/local/etc/uhppoted/sync/uhppoted-app-sync.toml"`)
	fmt.Println()
	fmt.Println(`    uhppoted-app-sync sync --credentials "service_account.json" \`)
	fmt.Println(`                           --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                           --range "Leads!A1:BC" \`)
	fmt.Println(`                           --file "leads.tsv"`)
	fmt.Println()
}

func (cmd *Sync) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("sync")

	flagset.StringVar(&cmd.file, "file", cmd.file, "Local TSV, CSV or XLSX export. Overrides the configuration file")
	flagset.StringVar(&cmd.sheet, "sheet", cmd.sheet, "Worksheet to read from an XLSX export. Defaults to the first worksheet")
	flagset.StringVar(&cmd.logfile, "log", cmd.logfile, "Run log file. Overrides the configuration file")
	flagset.StringVar(&cmd.lockfile, "lockfile", cmd.lockfile, "Lock file used to prevent overlapping runs. Overrides the configuration file")
	flagset.BoolVar(&cmd.noenrich, "no-enrich", cmd.noenrich, "Disables the agent score and profitability columns")
	flagset.BoolVar(&cmd.dryrun, "dryrun", cmd.dryrun, "Reports the changes that would be made without updating the worksheet")

	return flagset
}

func (cmd *Sync) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	// Spreadsheet and range are validated by the job so that a bad setting is recorded in
	// the run log like any other failure.
	conf, err := cmd.load()

	cmd.override(conf)

	// ... run log
	sinks := job.Tee{job.ConsoleSink{}}
	if conf.Log.File != "" {
		f, err := job.NewFileSink(conf.Log.File)
		if err != nil {
			return exit(job.Abort(sinks, job.DependencyMissing, fmt.Errorf("unable to open run log %v (%w)", conf.Log.File, err)))
		}

		defer f.Close()
		sinks = append(sinks, f)
	}

	if err != nil {
		return exit(job.Abort(sinks, job.Unknown, err))
	}

	// ... local records
	var source job.Source = records.File{
		Path:    conf.Records.File,
		Sheet:   conf.Records.Sheet,
		Key:     conf.Records.Key,
		Updated: conf.Records.Updated,
		Layout:  conf.Records.Layout,
	}

	if conf.Records.Enrich {
		source = enrich.Source{Source: source}
	}

	sync := job.Job{
		Credentials: conf.Google.Credentials,
		Spreadsheet: conf.Google.Spreadsheet,
		Range:       conf.Google.Range,
		Lockfile:    conf.Lock.File,
		Key:         conf.Records.Key,
		Updated:     conf.Records.Updated,
		Layout:      conf.Records.Layout,
		Probe: &job.Probe{
			URL:     conf.Probe.URL,
			Timeout: conf.Probe.Duration(),
		},
		Source:        source,
		Authenticator: gsheets.ServiceAccount{},
		Log:           sinks,
		DryRun:        cmd.dryrun,
		Debug:         cmd.debug,
	}

	if outcome := sync.Run(context.Background()); !outcome.Ok() {
		return exit(outcome)
	}

	return nil
}

func exit(outcome job.Outcome) error {
	return &ExitError{
		Code: outcome.ExitCode(),
		Err:  fmt.Errorf("%v (%v)", outcome, outcome.Err),
	}
}

func (cmd *Sync) override(conf *config.Config) {
	if v := strings.TrimSpace(cmd.file); v != "" {
		conf.Records.File = v
	}

	if v := strings.TrimSpace(cmd.sheet); v != "" {
		conf.Records.Sheet = v
	}

	if v := strings.TrimSpace(cmd.logfile); v != "" {
		conf.Log.File = v
	}

	if v := strings.TrimSpace(cmd.lockfile); v != "" {
		conf.Lock.File = v
	}

	if cmd.noenrich {
		conf.Records.Enrich = false
	}
}
