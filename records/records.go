package records

import (
	"fmt"
	"strings"
	"time"
)

const (
	DEFAULT_KEY     = "Request Token"
	DEFAULT_UPDATED = "Last Updated"
	DEFAULT_LAYOUT  = "2006-01-02 15:04:05"
)

// Record is a single local row to be reflected into the worksheet. Values are keyed by
// normalised column name.
type Record struct {
	Key     string
	Updated time.Time
	Values  map[string]string
}

type Table struct {
	Header  []string
	Records []Record
}

func (r Record) Get(column string) string {
	return r.Values[Normalise(column)]
}

func (r *Record) Set(column, value string) {
	if r.Values == nil {
		r.Values = map[string]string{}
	}

	r.Values[Normalise(column)] = value
}

// Has returns true if the record carries a value (possibly blank) for the column.
func (r Record) Has(column string) bool {
	_, ok := r.Values[Normalise(column)]

	return ok
}

// MakeTable builds a table from raw rows, the first of which is the header. The 'key' column
// is required, the 'updated' column is optional.
func MakeTable(rows [][]string, key, updated, layout string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	// .. build index
	index := map[string]int{}
	header := []string{}
	for i, v := range rows[0] {
		k := Normalise(v)
		if k == "" {
			continue
		}

		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", v)
		}

		index[k] = i
		header = append(header, clean(v))
	}

	if len(header) == 0 {
		return nil, fmt.Errorf("missing/invalid header row")
	}

	if _, ok := index[Normalise(key)]; !ok {
		return nil, fmt.Errorf("missing '%s' column", key)
	}

	// ... records
	records := []Record{}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}

		record := Record{
			Values: map[string]string{},
		}

		for _, h := range header {
			k := Normalise(h)
			v := ""
			if ix := index[k]; ix < len(row) {
				v = clean(row[ix])
			}

			record.Values[k] = v
		}

		record.Key = record.Get(key)

		if updated != "" {
			record.Updated = ParseTimestamp(record.Get(updated), layout)
		}

		records = append(records, record)
	}

	return &Table{
		Header:  header,
		Records: records,
	}, nil
}

// ParseTimestamp returns the zero time for blank or unparseable values.
func ParseTimestamp(v, layout string) time.Time {
	if layout == "" {
		layout = DEFAULT_LAYOUT
	}

	if t, err := time.ParseInLocation(layout, strings.TrimSpace(v), time.Local); err == nil {
		return t
	}

	return time.Time{}
}

func Normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}
