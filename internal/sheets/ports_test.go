package sheets

import (
	"strings"
	"testing"

	"monthbook/internal/store/storetest"
)

func TestSummaryRow(t *testing.T) {
	l := storetest.Ledger("u1", "2024-03", []string{"1000"}, []string{"200"})
	l.Version = 3

	got := strings.Join(SummaryRow(l), "|")
	want := "u1|2024-03|1000|200|800|3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(SummaryRow(l)) != len(SummaryHeader) {
		t.Fatalf("summary row does not match header width")
	}
}

func TestTransactionRows(t *testing.T) {
	l := storetest.Ledger("u1", "2024-03", []string{"10", "5"}, []string{"3"})
	rows := TransactionRows(l)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][3] != "INCOME" || rows[2][3] != "EXPENSE" {
		t.Fatalf("unexpected table order: %v", rows)
	}
	for _, r := range rows {
		if len(r) != len(TransactionsHeader) {
			t.Fatalf("row width %d, want %d", len(r), len(TransactionsHeader))
		}
	}
}
