package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/uhppoted/uhppoted-app-sync/job"
)

type Client struct {
	google *sheets.Service
}

// Worksheet is an A1 range on a single worksheet. Row index 0 is the top row of the range.
type Worksheet struct {
	google      *sheets.Service
	spreadsheet string
	sheet       int64
	area        Range
}

type Range struct {
	Sheet string
	Left  string
	Top   int
	Right string
}

func NewClient(ctx context.Context, options ...option.ClientOption) (*Client, error) {
	google, err := sheets.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%v)", err)
	}

	return &Client{
		google: google,
	}, nil
}

// Open resolves the spreadsheet (ID or URL) and the worksheet named in the range.
func (c *Client) Open(ctx context.Context, spreadsheet string, area string) (job.Remote, error) {
	return c.Worksheet(ctx, spreadsheet, area)
}

func (c *Client) Worksheet(ctx context.Context, spreadsheet string, area string) (*Worksheet, error) {
	id := SpreadsheetID(spreadsheet)
	if id == "" {
		return nil, fmt.Errorf("%w: invalid spreadsheet ID/URL '%v'", job.ErrSheetNotFound, spreadsheet)
	}

	r, err := ParseRange(area)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", job.ErrSheetNotFound, err)
	}

	response, err := c.google.Spreadsheets.Get(id).Fields("spreadsheetId", "sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet (%w)", classify(err))
	}

	sheet, err := getSheet(response, r.Sheet)
	if err != nil {
		return nil, err
	}

	return &Worksheet{
		google:      c.google,
		spreadsheet: response.SpreadsheetId,
		sheet:       sheet.Properties.SheetId,
		area:        *r,
	}, nil
}

func (w *Worksheet) Rows(ctx context.Context) ([][]string, error) {
	response, err := w.google.Spreadsheets.Values.Get(w.spreadsheet, w.area.String()).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%w)", classify(err))
	}

	rows := [][]string{}
	for _, values := range response.Values {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = fmt.Sprintf("%v", v)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Append adds a row after the last row of the range and returns its row index, or 0 if
// the index could not be determined from the response.
func (w *Worksheet) Append(ctx context.Context, row []string) (int, error) {
	values := sheets.ValueRange{
		Values: [][]any{cells(row)},
	}

	response, err := w.google.Spreadsheets.Values.Append(w.spreadsheet, w.area.String(), &values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("error appending row to Google Sheets (%w)", classify(err))
	}

	if response.Updates != nil {
		if n, ok := rowNumber(response.Updates.UpdatedRange); ok && n >= w.area.Top {
			return n - w.area.Top, nil
		}
	}

	return 0, nil
}

func (w *Worksheet) Update(ctx context.Context, index int, row []string) error {
	values := sheets.ValueRange{
		Values: [][]any{cells(row)},
	}

	area := fmt.Sprintf("%v!%v%v", quote(w.area.Sheet), w.area.Left, w.area.Top+index)

	if _, err := w.google.Spreadsheets.Values.Update(w.spreadsheet, area, &values).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error updating row %v in Google Sheets (%w)", w.area.Top+index, classify(err))
	}

	return nil
}

// Clear removes all values in the range.
func (w *Worksheet) Clear(ctx context.Context) error {
	rq := sheets.BatchClearValuesRequest{
		Ranges: []string{w.area.String()},
	}

	if _, err := w.google.Spreadsheets.Values.BatchClear(w.spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return classify(err)
	}

	return nil
}

// FormatHeader sets the top row of the range to bold text on a light grey background.
func (w *Worksheet) FormatHeader(ctx context.Context) error {
	rq := sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:         w.sheet,
						StartRowIndex:   int64(w.area.Top - 1),
						EndRowIndex:     int64(w.area.Top),
						ForceSendFields: []string{"SheetId", "StartRowIndex", "EndRowIndex"},
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{
								Bold: true,
							},
							BackgroundColor: &sheets.Color{
								Red:   0.9,
								Green: 0.9,
								Blue:  0.9,
							},
						},
					},
					Fields: "userEnteredFormat(textFormat,backgroundColor)",
				},
			},
		},
	}

	if _, err := w.google.Spreadsheets.BatchUpdate(w.spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return classify(err)
	}

	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("%v!%v%v:%v", quote(r.Sheet), r.Left, r.Top, r.Right)
}

// ParseRange parses an A1 range of the form 'Leads!A1:BC'. Any bottom row is ignored.
func ParseRange(area string) (*Range, error) {
	match := regexp.MustCompile(`^(.+?)!([a-zA-Z]+)([0-9]+):([a-zA-Z]+)([0-9]+)?$`).FindStringSubmatch(strings.TrimSpace(area))
	if len(match) < 5 {
		return nil, fmt.Errorf("invalid range '%s' - expected something like 'Leads!A1:BC'", area)
	}

	top, err := strconv.Atoi(match[3])
	if err != nil || top < 1 {
		return nil, fmt.Errorf("invalid range '%s' - invalid top row", area)
	}

	sheet := match[1]
	if len(sheet) > 1 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	return &Range{
		Sheet: sheet,
		Left:  strings.ToUpper(match[2]),
		Top:   top,
		Right: strings.ToUpper(match[4]),
	}, nil
}

// SpreadsheetID extracts the spreadsheet ID from a Google Sheets URL, or returns the
// argument unchanged if it is not a URL.
func SpreadsheetID(spreadsheet string) string {
	s := strings.TrimSpace(spreadsheet)

	if match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(s); len(match) > 1 {
		return match[1]
	}

	if strings.Contains(s, "/") {
		return ""
	}

	return s
}

func getSheet(spreadsheet *sheets.Spreadsheet, name string) (*sheets.Sheet, error) {
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && strings.EqualFold(strings.TrimSpace(sheet.Properties.Title), strings.TrimSpace(name)) {
			return sheet, nil
		}
	}

	return nil, fmt.Errorf("%w: unable to identify worksheet '%s'", job.ErrSheetNotFound, name)
}

// classify wraps Google API and OAuth2 errors with the corresponding job sentinel error.
func classify(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w (%v)", job.ErrAuthFailed, err)
	}

	var e *googleapi.Error
	if errors.As(err, &e) {
		switch {
		case e.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w (%v)", job.ErrAuthFailed, err)

		case e.Code == http.StatusForbidden:
			return fmt.Errorf("%w (%v)", job.ErrPermissionDenied, err)

		case e.Code == http.StatusNotFound:
			return fmt.Errorf("%w (%v)", job.ErrSheetNotFound, err)

		case e.Code == http.StatusBadRequest && strings.Contains(e.Message, "Unable to parse range"):
			return fmt.Errorf("%w (%v)", job.ErrSheetNotFound, err)
		}
	}

	return err
}

func rowNumber(area string) (int, bool) {
	match := regexp.MustCompile(`![a-zA-Z]+([0-9]+)`).FindStringSubmatch(area)
	if len(match) < 2 {
		return 0, false
	}

	n, err := strconv.Atoi(match[1])

	return n, err == nil
}

func cells(row []string) []any {
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}

	return values
}

func quote(sheet string) string {
	if regexp.MustCompile(`^[a-zA-Z0-9_]+$`).MatchString(sheet) {
		return sheet
	}

	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
