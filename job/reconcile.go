package job

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/uhppoted/uhppoted-app-sync/records"
)

type summary struct {
	appended  int
	updated   int
	unchanged int
	skipped   int
	failed    int
}

type worksheet struct {
	rows   [][]string
	header []string
	index  map[string]int
	keys   map[string]int
}

// reconcile appends local records missing from the worksheet and updates worksheet rows
// that are older than the local record. Rows are written one at a time and a failed write
// does not stop the pass.
func (j *Job) reconcile(ctx context.Context, remote Remote, table *records.Table) (summary, error) {
	result := summary{}

	rows, err := remote.Rows(ctx)
	if err != nil {
		j.errorf("unable to retrieve data from worksheet (%v)", err)
		return result, fail(classify(err, Unknown), "%v", err)
	}

	if len(rows) == 0 || blank(rows[0]) {
		j.infof("worksheet has no header row - initialising from local header %v", table.Header)

		if !j.DryRun {
			if err := remote.Update(ctx, 0, table.Header); err != nil {
				j.errorf("unable to initialise worksheet header (%v)", err)
				return result, fail(classify(err, Unknown), "%v", err)
			}
		}

		if len(rows) == 0 {
			rows = [][]string{slices.Clone(table.Header)}
		} else {
			rows[0] = slices.Clone(table.Header)
		}
	}

	sheet, err := j.index(rows)
	if err != nil {
		j.errorf("%v", err)
		return result, fail(Unknown, "%v", err)
	}

	j.infof("found %v existing rows", len(rows)-1)

	if unmapped := sheet.unmapped(table.Header); len(unmapped) > 0 {
		j.warnf("local columns %v not in worksheet header - ignored", strings.Join(unmapped, ", "))
	}

	for n, record := range table.Records {
		tag := fmt.Sprintf("record %v (%v)", n+1, record.Key)

		if record.Key == "" {
			j.warnf("record %v has no '%v' - skipped", n+1, j.key())
			result.skipped++
			continue
		}

		ix, ok := sheet.keys[record.Key]
		if !ok {
			row := sheet.row(nil, record)

			if j.DryRun {
				j.infof("%v  dry run - not appended", tag)
				sheet.put(len(sheet.rows), record.Key, row)
				result.appended++
				continue
			}

			index, err := remote.Append(ctx, row)
			if err != nil {
				j.errorf("%v  %v  append failed (%v)", tag, PartialWriteFailure, err)
				result.failed++
				continue
			}

			result.appended++
			j.infof("%v  appended", tag)

			if index > 0 {
				sheet.insert(index, record.Key, row)
			} else if sheet, err = j.refresh(ctx, remote); err != nil {
				return result, err
			}

			continue
		}

		existing := sheet.rows[ix]
		if !j.modified(sheet, existing, record) {
			j.debugf("%v  unchanged", tag)
			result.unchanged++
			continue
		}

		row := sheet.row(existing, record)

		if j.DryRun {
			j.infof("%v  dry run - not updated", tag)
			sheet.rows[ix] = row
			result.updated++
			continue
		}

		if err := remote.Update(ctx, ix, row); err != nil {
			j.errorf("%v  %v  update failed (%v)", tag, PartialWriteFailure, err)
			result.failed++
			continue
		}

		sheet.rows[ix] = row
		result.updated++
		j.infof("%v  updated", tag)
	}

	return result, nil
}

// refresh re-reads the worksheet after a write that moved rows to an unknown position.
func (j *Job) refresh(ctx context.Context, remote Remote) (*worksheet, error) {
	rows, err := remote.Rows(ctx)
	if err != nil {
		j.errorf("unable to retrieve data from worksheet (%v)", err)
		return nil, fail(classify(err, Unknown), "%v", err)
	}

	if len(rows) == 0 {
		j.errorf("worksheet is empty after append")
		return nil, fail(Unknown, "worksheet is empty after append")
	}

	sheet, err := j.index(rows)
	if err != nil {
		j.errorf("%v", err)
		return nil, fail(Unknown, "%v", err)
	}

	return sheet, nil
}

func (j *Job) index(rows [][]string) (*worksheet, error) {
	sheet := worksheet{
		rows:   rows,
		header: rows[0],
		index:  map[string]int{},
		keys:   map[string]int{},
	}

	for i, v := range sheet.header {
		k := records.Normalise(v)
		if k == "" {
			continue
		}

		if _, ok := sheet.index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s' in worksheet", v)
		}

		sheet.index[k] = i
	}

	column, ok := sheet.index[records.Normalise(j.key())]
	if !ok {
		return nil, fmt.Errorf("worksheet has no '%v' column", j.key())
	}

	for i, row := range rows[1:] {
		key := cell(row, column)
		if key == "" {
			continue
		}

		if _, ok := sheet.keys[key]; ok {
			j.warnf("duplicate '%v' %v in worksheet row %v - ignored", j.key(), key, i+2)
			continue
		}

		sheet.keys[key] = i + 1
	}

	return &sheet, nil
}

// modified compares the record with the worksheet row by timestamp. If the worksheet has no
// timestamp column the cell values are compared instead.
func (j *Job) modified(sheet *worksheet, row []string, record records.Record) bool {
	if column, ok := sheet.index[records.Normalise(j.updated())]; ok {
		if record.Updated.IsZero() {
			return false
		}

		timestamp := records.ParseTimestamp(cell(row, column), j.Layout)

		return record.Updated.After(timestamp)
	}

	for i, h := range sheet.header {
		if record.Has(h) && record.Get(h) != cell(row, i) {
			return true
		}
	}

	return false
}

// row builds a worksheet row for the record in worksheet column order, keeping existing
// cell values for columns the record does not carry.
func (w *worksheet) row(existing []string, record records.Record) []string {
	row := make([]string, len(w.header))

	copy(row, existing)

	for i, h := range w.header {
		if records.Normalise(h) == "" {
			continue
		}

		if record.Has(h) {
			row[i] = record.Get(h)
		}
	}

	return row
}

func (w *worksheet) put(index int, key string, row []string) {
	for len(w.rows) <= index {
		w.rows = append(w.rows, nil)
	}

	w.rows[index] = row
	w.keys[key] = index
}

// insert places an appended row at index. Rows already at or below index move down
// one row, the way the worksheet inserts rows.
func (w *worksheet) insert(index int, key string, row []string) {
	if index >= len(w.rows) {
		w.put(index, key, row)
		return
	}

	w.rows = slices.Insert(w.rows, index, row)

	for k, ix := range w.keys {
		if ix >= index {
			w.keys[k] = ix + 1
		}
	}

	w.keys[key] = index
}

// unmapped returns the local columns that have no matching worksheet column.
func (w *worksheet) unmapped(header []string) []string {
	list := []string{}
	for _, h := range header {
		if k := records.Normalise(h); k != "" {
			if _, ok := w.index[k]; !ok {
				list = append(list, h)
			}
		}
	}

	return list
}

func (j *Job) key() string {
	if j.Key == "" {
		return records.DEFAULT_KEY
	}

	return j.Key
}

func (j *Job) updated() string {
	if j.Updated == "" {
		return records.DEFAULT_UPDATED
	}

	return j.Updated
}

func cell(row []string, ix int) string {
	if ix < len(row) {
		return strings.TrimSpace(row[ix])
	}

	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}
