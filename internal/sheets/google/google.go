package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"monthbook/internal/core"
	ports "monthbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultSummarySheet      = "Ledgers"
	DefaultTransactionsSheet = "Transactions"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID     string
	SummarySheet      string
	TransactionsSheet string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// valuesAPI is the subset of the Sheets values API the exporter needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
	Append(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

type Client struct {
	values            valuesAPI
	spreadsheetID     string
	summarySheet      string
	transactionsSheet string
}

var _ ports.LedgerExporter = (*Client)(nil)

// New creates a Sheets exporter using Service Account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, cfg), nil
}

func newClient(values valuesAPI, cfg Config) *Client {
	summary := strings.TrimSpace(cfg.SummarySheet)
	if summary == "" {
		summary = DefaultSummarySheet
	}
	txs := strings.TrimSpace(cfg.TransactionsSheet)
	if txs == "" {
		txs = DefaultTransactionsSheet
	}
	return &Client{
		values:            values,
		spreadsheetID:     strings.TrimSpace(cfg.SpreadsheetID),
		summarySheet:      summary,
		transactionsSheet: txs,
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export upserts the ledger's summary row and appends transactions the
// transactions sheet has not seen yet.
func (c *Client) Export(ctx context.Context, l core.MonthlyLedger) error {
	if c.values == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.upsertSummary(ctx, l); err != nil {
		return err
	}
	return c.appendTransactions(ctx, l)
}

func (c *Client) upsertSummary(ctx context.Context, l core.MonthlyLedger) error {
	rng := a1(c.summarySheet, "A:F")
	existing, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	row := toRow(ports.SummaryRow(l))
	pos, version := findSummaryRow(existing, l.UserID, l.MonthYear)
	if pos > 0 {
		if version >= l.Version {
			slog.DebugContext(ctx, "Summary row already up to date",
				"user_id", l.UserID, "month_year", l.MonthYear, "version", l.Version, "sheet_version", version)
			return nil
		}
		target := a1(c.summarySheet, fmt.Sprintf("A%d:F%d", pos, pos))
		if err := c.values.Update(ctx, c.spreadsheetID, target, [][]interface{}{row}); err != nil {
			return fmt.Errorf("update %s: %w", target, err)
		}
		return nil
	}

	var values [][]interface{}
	if len(existing) == 0 {
		values = append(values, toRow(ports.SummaryHeader))
	}
	values = append(values, row)
	if err := c.values.Append(ctx, c.spreadsheetID, rng, values); err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (c *Client) appendTransactions(ctx context.Context, l core.MonthlyLedger) error {
	idRange := a1(c.transactionsSheet, "A:A")
	existing, err := c.values.Get(ctx, c.spreadsheetID, idRange)
	if err != nil {
		return fmt.Errorf("read %s: %w", idRange, err)
	}

	missing := missingRows(existing, l)
	if len(missing) == 0 {
		return nil
	}
	var values [][]interface{}
	if len(existing) == 0 {
		values = append(values, toRow(ports.TransactionsHeader))
	}
	values = append(values, missing...)

	rng := a1(c.transactionsSheet, "A:G")
	if err := c.values.Append(ctx, c.spreadsheetID, rng, values); err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Appended ledger transactions to sheet",
		"user_id", l.UserID, "month_year", l.MonthYear, "rows", len(missing))
	return nil
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s serviceValues) Append(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}
