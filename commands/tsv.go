package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// sheetToTSV writes the header row and every non-blank row, padded or truncated to the
// width of the header.
func sheetToTSV(f io.Writer, rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("empty sheet")
	}

	// ... header
	header := []string{}
	for _, v := range rows[0] {
		header = append(header, clean(v))
	}

	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}

	if len(header) == 0 {
		return fmt.Errorf("missing/invalid header row")
	}

	// ... records
	records := [][]string{}
	for _, row := range rows[1:] {
		record := make([]string, len(header))
		blank := true

		for i := range header {
			if i < len(row) {
				record[i] = clean(row[i])
			}

			if record[i] != "" {
				blank = false
			}
		}

		if !blank {
			records = append(records, record)
		}
	}

	// ... write to file
	w := csv.NewWriter(f)
	w.Comma = '\t'

	w.Write(header)
	for _, record := range records {
		w.Write(record)
	}

	w.Flush()

	return w.Error()
}

func clean(v string) string {
	return strings.TrimSpace(v)
}
