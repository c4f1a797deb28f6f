// Package sheets mirrors generated report rows into a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/ledgerview/pkg/export"
)

// Defaults for Config.
const (
	DefaultSheetName  = "Reports"
	DefaultSheetTitle = "ledgerview audit reports"
	DefaultRetryDelay = 60 * time.Second
	defaultAttempts   = 3
)

// Scopes are the OAuth scopes the mirror needs.
var Scopes = []string{sheets.SpreadsheetsScope}

// Writer appends report rows to a spreadsheet. Each row is prefixed with the
// report filename so several reports can share one sheet.
type Writer struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	sheetName   string
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Config holds configuration for the Sheets writer.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
	// RetryDelay is the wait between attempts after a rate limit response.
	RetryDelay time.Duration
}

// New creates a Sheets writer, opening SheetID or creating a new spreadsheet.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.SheetTitle == "" {
		cfg.SheetTitle = DefaultSheetTitle
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	w := &Writer{
		client:     client,
		sheetName:  cfg.SheetName,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}

	spreadsheet, err := w.initSpreadsheet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	w.spreadsheet = spreadsheet

	logger.Info("sheets mirror initialized",
		"spreadsheet_id", spreadsheet.SpreadsheetId,
		"sheet", cfg.SheetName,
	)
	return w, nil
}

func (w *Writer) initSpreadsheet(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	if cfg.SheetID != "" {
		spreadsheet, err := w.client.Spreadsheets.Get(cfg.SheetID).Context(ctx).Do()
		if err == nil {
			w.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", cfg.SheetID)
			return spreadsheet, nil
		}
		w.logger.Warn("failed to get spreadsheet, will create new one", "id", cfg.SheetID, "error", err)
	}

	spreadsheet, err := w.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: cfg.SheetTitle,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: cfg.SheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet", "title", cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	if err := w.writeHeaders(ctx, spreadsheet.SpreadsheetId); err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}
	return spreadsheet, nil
}

// Header is the first row of a new sheet.
func Header() []any {
	row := []any{"Report"}
	for _, h := range export.Header {
		row = append(row, h)
	}
	return row
}

func (w *Writer) writeHeaders(ctx context.Context, spreadsheetID string) error {
	headerRange := fmt.Sprintf("%s!A1:G1", w.sheetName)
	headerReq := sheets.ValueRange{Values: [][]any{Header()}}

	_, err := w.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating headers: %w", err)
	}
	return nil
}

// Values converts rows into sheet values, prefixing each with report.
func Values(report string, rows []export.Row) [][]any {
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		line := []any{report}
		for _, v := range r.Values() {
			line = append(line, v)
		}
		values = append(values, line)
	}
	return values
}

// Mirror appends rows in a single API call, retrying on rate limits.
func (w *Writer) Mirror(ctx context.Context, report string, rows []export.Row) error {
	if len(rows) == 0 {
		return nil
	}

	writeRange := fmt.Sprintf("%s!A2:G2", w.sheetName)
	writeReq := sheets.ValueRange{Values: Values(report, rows)}

	err := retry.Do(
		func() error {
			_, err := w.client.Spreadsheets.Values.Append(w.spreadsheet.SpreadsheetId, writeRange, &writeReq).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			if isRateLimited(err) {
				w.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(defaultAttempts),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending rows to sheet: %w", err)
	}

	w.logger.Info("mirrored report rows", "report", report, "count", len(rows))
	return nil
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	if w.spreadsheet == nil {
		return ""
	}
	return w.spreadsheet.SpreadsheetId
}
