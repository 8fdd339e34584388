// Package enrich adds derived lead columns (agent score, recommendation and profitability
// flag) to local records before they are synchronised.
//
// The enrichment is a pure function of the record so that re-running a sync over unchanged
// records produces identical rows.
package enrich

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/uhppoted/uhppoted-app-sync/records"
)

const (
	COMMUNICATIONS = "Communication Count"
	STATUS         = "Request Status"
	PAX            = "Pax"
	CLIENT         = "Client Name"

	AGENT_SCORE          = "Agent Score"
	AGENT_RECOMMENDATION = "Agent Recommendation"
	PROFITABILITY        = "Profitability Flag"
)

// Source decorates a record source with the derived columns.
type Source struct {
	Source interface {
		Check() error
		Load() (*records.Table, error)
	}
}

func (s Source) Check() error {
	return s.Source.Check()
}

func (s Source) Load() (*records.Table, error) {
	table, err := s.Source.Load()
	if err != nil {
		return nil, err
	}

	for _, column := range []string{AGENT_SCORE, AGENT_RECOMMENDATION, PROFITABILITY} {
		if !slices.ContainsFunc(table.Header, func(h string) bool { return records.Normalise(h) == records.Normalise(column) }) {
			table.Header = append(table.Header, column)
		}
	}

	for i := range table.Records {
		Enrich(&table.Records[i])
	}

	return table, nil
}

func (s Source) String() string {
	return fmt.Sprintf("%v", s.Source)
}

func Enrich(record *records.Record) {
	communications, _ := strconv.Atoi(strings.TrimSpace(record.Get(COMMUNICATIONS)))
	score, recommendation := Score(communications, record.Get(STATUS))

	record.Set(AGENT_SCORE, fmt.Sprintf("%v", score))
	record.Set(AGENT_RECOMMENDATION, recommendation)
	record.Set(PROFITABILITY, Profitability(record.Get(PAX), record.Get(CLIENT)))
}

// Score rates the sales agent handling a lead from the number of communications and the
// current request status.
func Score(communications int, status string) (int, string) {
	score := 8
	recommendation := "Active communication maintained"

	switch {
	case communications <= 0:
		score = 3
		recommendation = "No response from agent yet"

	case communications == 1:
		score = 6
		recommendation = "Initial contact made, needs follow-up"
	}

	status = strings.ToLower(status)

	switch {
	case strings.Contains(status, "confirmed"):
		score = min(10, score+2)
		recommendation = "Lead successfully converted"

	case strings.Contains(status, "new") && communications > 0:
		score = max(1, score-1)
		recommendation = "Response needed for new lead"
	}

	return score, recommendation
}

// Profitability flags leads that are typically low margin.
func Profitability(pax, client string) string {
	flags := []string{}

	pax = strings.ToLower(strings.TrimSpace(pax))
	client = strings.ToLower(client)

	if pax == "1" || strings.Contains(pax, "solo") {
		flags = append(flags, "Solo traveler (1 PAX)")
	}

	if strings.Contains(client, "shore") || strings.Contains(client, "excursion") {
		flags = append(flags, "Shore excursion")
	}

	if strings.Contains(client, "day trip") || strings.Contains(client, "half day") {
		flags = append(flags, "Short duration trip")
	}

	if len(flags) == 0 {
		return "No issues identified"
	}

	return strings.Join(flags, "; ")
}
