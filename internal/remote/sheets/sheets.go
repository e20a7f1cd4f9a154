// Package sheets is a row store on a Google Sheets tab, one expense per row.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/google/uuid"

	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

const defaultSheetName = "Expenses"

// Config selects the spreadsheet and the credentials.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ remote.ExpenseStore = (*Client)(nil)
	_ remote.Pinger       = (*Client)(nil)
)

// New creates a Sheets client using service account credentials. Extra client
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:F", c.sheetName)
}

func (c *Client) readRows(ctx context.Context) ([]parsedRow, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	return parseRows(resp.Values), nil
}

func (c *Client) ListExpenses(ctx context.Context, sess remote.Session) ([]core.Expense, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	var out []core.Expense
	for _, r := range rows {
		if r.expense.UserID == uid {
			out = append(out, r.expense)
		}
	}
	core.SortByPaymentDay(out)
	return out, nil
}

func (c *Client) ListAmounts(ctx context.Context, sess remote.Session) ([]core.Whole, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A:D", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list amounts: read %s: %w", rng, err)
	}
	var out []core.Whole
	for _, r := range parseRows(resp.Values) {
		if r.expense.UserID == uid {
			out = append(out, r.expense.Amount)
		}
	}
	return out, nil
}

func (c *Client) InsertExpense(ctx context.Context, sess remote.Session, e core.NewExpense) (core.Expense, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != uid {
		return core.Expense{}, fmt.Errorf("insert expense for %q: %w", e.UserID, remote.ErrNoSession)
	}
	row := e.Expense(uuid.NewString())

	vr := &gsheet.ValueRange{Values: [][]interface{}{formatRow(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return core.Expense{}, fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil {
		c.logger.DebugContext(ctx, "Expense appended", log.FieldExpenseID, row.ID, "range", resp.Updates.UpdatedRange)
	}
	return row, nil
}

// DeleteExpense removes the matching row from the tab.
func (c *Client) DeleteExpense(ctx context.Context, sess remote.Session, id string) error {
	uid, err := sess.RequireUser()
	if err != nil {
		return err
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	index := int64(-1)
	for _, r := range rows {
		if r.expense.ID == id && r.expense.UserID == uid {
			index = r.index
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("delete expense %s: %w", id, remote.ErrNotFound)
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: index,
					EndIndex:   index + 1,
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", index+1, c.sheetName, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q: %w", c.sheetName, remote.ErrNotFound)
}

// Ping reads the header row.
func (c *Client) Ping(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do(); err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	return nil
}
