// Package google mirrors expense rows into a Google Sheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"outlay/internal/core"
	ports "outlay/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Mirror sheet layout: one header row, then one row per expense with
// columns ID, Amount, Description, Category, Date, Owner.
const headerRows = 1

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.RowMirror = (*Client)(nil)

// New creates a mirror client for the given spreadsheet and sheet name.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Upsert writes the expense into the mirror sheet, updating in place
// when a row with the same id already exists.
func (c *Client) Upsert(ctx context.Context, e core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, err := c.findRow(ctx, e.ID)
	if err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]any{{
		strconv.FormatInt(e.ID, 10),
		e.Amount.String(),
		e.Description,
		e.Category,
		e.Date.String(),
		strconv.FormatInt(e.OwnerID, 10),
	}}}

	if row > 0 {
		rng := fmt.Sprintf("%s!A%d:F%d", c.sheetName, row, row)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update row %d in sheet %s: %w", row, c.sheetName, err)
		}
		slog.InfoContext(ctx, "Mirror row updated", "id", e.ID, "row", row)
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	slog.InfoContext(ctx, "Mirror row appended", "id", e.ID)
	return nil
}

// Remove drops the row carrying the given expense id. A missing row is
// not an error: the mirror may never have seen the record.
func (c *Client) Remove(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		slog.WarnContext(ctx, "Mirror row not found for delete", "id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d from sheet %s: %w", row, c.sheetName, err)
	}

	slog.InfoContext(ctx, "Mirror row removed", "id", id, "row", row)
	return nil
}

// findRow returns the 1-based row holding the id, or 0 when absent.
func (c *Client) findRow(ctx context.Context, id int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column of sheet %s: %w", c.sheetName, err)
	}

	want := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if i < headerRows || len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && strings.TrimSpace(cell) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
