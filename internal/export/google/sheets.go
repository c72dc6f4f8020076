// Package google exports days to a Google Sheets spreadsheet, one tab per
// date.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"boletim/internal/core"
	"boletim/internal/export"
	"boletim/internal/provider"
	"boletim/internal/table"
)

var _ provider.DayExporter = (*Exporter)(nil)

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Credentials selects the service account. JSON wins over File.
type Credentials struct {
	File string
	JSON string
}

// New builds an exporter authenticated with a service account.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		data, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	return NewWithOptions(ctx, spreadsheetID,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds an exporter from raw client options.
func NewWithOptions(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Exporter, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ExportDay replaces the content of the date's tab with the rendered grid,
// creating the tab when needed. It returns the written range.
func (e *Exporter) ExportDay(ctx context.Context, record *core.Record, footer table.Footer) (string, error) {
	grid := export.BuildGrid(record, footer)
	tab := grid.Title

	if err := e.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	all := quoteRange(tab, "A:Z")
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, all, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}

	values := make([][]any, len(grid.Rows))
	for i, row := range grid.Rows {
		cells := make([]any, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c
		}
		values[i] = cells
	}

	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, quoteRange(tab, "A1"),
		&gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", tab, err)
	}

	slog.InfoContext(ctx, "Exported day to Google Sheets",
		"date", record.Date.String(),
		"range", resp.UpdatedRange,
		"rows", resp.UpdatedRows)
	return resp.UpdatedRange, nil
}

func (e *Exporter) ensureTab(ctx context.Context, tab string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	_, err = e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

// quoteRange builds A1 notation for a tab whose name may contain spaces
// and slashes.
func quoteRange(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}
