package config

import (
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the sync configuration, loaded from a TOML file. Command line flags override
// individual settings.
type Config struct {
	Google  GoogleConfig  `toml:"google"`
	Records RecordsConfig `toml:"records"`
	Log     LogConfig     `toml:"log"`
	Lock    LockConfig    `toml:"lock"`
	Probe   ProbeConfig   `toml:"probe"`
}

type GoogleConfig struct {
	Credentials string   `toml:"credentials"`
	Spreadsheet string   `toml:"spreadsheet"`
	Range       string   `toml:"range"`
	Header      []string `toml:"header"`
}

type RecordsConfig struct {
	File    string `toml:"file"`
	Sheet   string `toml:"sheet"`
	Key     string `toml:"key"`
	Updated string `toml:"updated"`
	Layout  string `toml:"layout"`
	Enrich  bool   `toml:"enrich"`
}

type LogConfig struct {
	File string `toml:"file"`
}

type LockConfig struct {
	File string `toml:"file"`
}

type ProbeConfig struct {
	URL     string `toml:"url"`
	Timeout uint   `toml:"timeout"` // seconds
}

func DefaultConfig(etc, workdir string) *Config {
	return &Config{
		Google: GoogleConfig{
			Credentials: etc + "/sync/.google/service_account.json",
			Spreadsheet: "",
			Range:       "Leads!A1:BC",
			Header:      slices.Clone(ERP_HEADER),
		},
		Records: RecordsConfig{
			File:    workdir + "/sync/leads.tsv",
			Key:     "Request Token",
			Updated: "Last Updated",
			Layout:  "2006-01-02 15:04:05",
			Enrich:  true,
		},
		Log: LogConfig{
			File: workdir + "/sync/sync.log",
		},
		Lock: LockConfig{
			File: workdir + "/sync/sync.lock",
		},
		Probe: ProbeConfig{
			URL:     "https://www.google.com",
			Timeout: 10,
		},
	}
}

// Load overlays the settings in the TOML file onto the defaults. A missing file is not an
// error.
func (c *Config) Load(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	return toml.Unmarshal(data, c)
}

func (p ProbeConfig) Duration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// ERP_HEADER is the default worksheet header, in ERP report order followed by the
// enrichment columns.
var ERP_HEADER = []string{
	"#",
	"Hub",
	"Client Name",
	"Nationality",
	"Email",
	"Operator",
	"File Status",
	"Arrival",
	"Departure",
	"Pax",
	"Lead / Operation",
	"Request Channel",
	"Communication",
	"Medium",
	"Offered Income",
	"Offered Income (USD)",
	"Actual Paid Amount",
	"Actual Paid Amount (USD)",
	"Remaining Payment",
	"Remaining Payment (USD)",
	"Submission Date",
	"Confirmation Date",
	"Company",
	"Department",
	"Product Title",
	"UTM Campaign",
	"Initial Price",
	"Device Type",
	"Client Phone",
	"File No",
	"Request Token",
	"Sales Person",
	"Request Status",
	"Source",
	"VIP Status",
	"Loyalty Program",
	"Group",
	"Has Int. Flight",
	"Single Room",
	"Double Room",
	"Triple Room",
	"Family Room",
	"Int.Flight Amount",
	"Int.Flight Currency",
	"Agent / Group Discount",
	"Agent Score",
	"Agent Recommendation",
	"IP Country",
	"IP State/Region",
	"IP City",
	"Profitability Flag",
	"Communication Count",
	"Last Updated",
	"Lead ID",
	"Lead URL",
}
