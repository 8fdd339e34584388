package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// File is a local record source: a TSV/CSV export or an Excel workbook.
type File struct {
	Path    string
	Sheet   string
	Key     string
	Updated string
	Layout  string
}

func (f File) String() string {
	if f.Sheet != "" {
		return fmt.Sprintf("%v[%v]", f.Path, f.Sheet)
	}

	return f.Path
}

// Check verifies that the source file exists and is readable without loading it.
func (f File) Check() error {
	if strings.TrimSpace(f.Path) == "" {
		return fmt.Errorf("no record file configured")
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}

	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return err
	} else if info.IsDir() {
		return fmt.Errorf("%v is a directory", f.Path)
	}

	return nil
}

func (f File) Load() (*Table, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".xlsx", ".xlsm":
		rows, err = f.xlsx()

	case ".csv":
		rows, err = f.delimited(',')

	default:
		rows, err = f.delimited('\t')
	}

	if err != nil {
		return nil, err
	}

	key := f.Key
	if key == "" {
		key = DEFAULT_KEY
	}

	updated := f.Updated
	if updated == "" {
		updated = DEFAULT_UPDATED
	}

	return MakeTable(rows, key, updated, f.Layout)
}

func (f File) delimited(delimiter rune) ([][]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}

	defer file.Close()

	return ReadDelimited(file, delimiter)
}

func (f File) xlsx() ([][]string, error) {
	workbook, err := excelize.OpenFile(f.Path)
	if err != nil {
		return nil, err
	}

	defer workbook.Close()

	sheet := f.Sheet
	if sheet == "" {
		list := workbook.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("workbook %v has no worksheets", f.Path)
		}

		sheet = list[0]
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error reading worksheet '%v' (%w)", sheet, err)
	}

	return rows, nil
}

// ReadDelimited reads a TSV/CSV stream, tolerating ragged rows.
func ReadDelimited(r io.Reader, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	return rows, nil
}
