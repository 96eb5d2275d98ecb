package sheets

import (
	"context"
	"strconv"

	"monthbook/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors a ledger into an external spreadsheet. Export
	// must be idempotent: exporting the same ledger twice leaves one summary
	// row and one row per transaction id.
	LedgerExporter interface {
		Export(ctx context.Context, l core.MonthlyLedger) error
	}
)

// Sheet headers shared by adapters.
var (
	SummaryHeader      = []string{"UserID", "MonthYear", "TotalIncome", "TotalExpense", "CurrentAmount", "Version"}
	TransactionsHeader = []string{"ID", "UserID", "MonthYear", "Type", "Date", "Category", "Amount"}
)

// SummaryRow renders the calculations row for a ledger.
func SummaryRow(l core.MonthlyLedger) []string {
	c := l.Calculations
	return []string{
		l.UserID,
		l.MonthYear,
		c.TotalIncome.String(),
		c.TotalExpense.String(),
		c.CurrentAmount.String(),
		strconv.FormatInt(l.Version, 10),
	}
}

// TransactionRows renders one row per transaction, income first.
func TransactionRows(l core.MonthlyLedger) [][]string {
	var out [][]string
	for _, tbl := range l.Tables() {
		for _, tx := range tbl.Rows {
			out = append(out, []string{
				tx.ID,
				l.UserID,
				l.MonthYear,
				string(tbl.Name),
				tx.Date.String(),
				tx.Category,
				tx.Amount.String(),
			})
		}
	}
	return out
}
