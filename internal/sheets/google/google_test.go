package google

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"monthbook/internal/store/storetest"
)

// fakeValues keeps sheets as in-memory matrices keyed by sheet name.
type fakeValues struct {
	mu     sync.Mutex
	sheets map[string][][]interface{}
	calls  []string
	err    error
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]interface{}{}}
}

func sheetOf(rng string) string {
	name := rng[:strings.LastIndex(rng, "!")]
	return strings.Trim(name, "'")
}

func (f *fakeValues) Get(_ context.Context, _, rng string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get "+rng)
	if f.err != nil {
		return nil, f.err
	}
	return f.sheets[sheetOf(rng)], nil
}

func (f *fakeValues) Update(_ context.Context, _, rng string, values [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update "+rng)
	// Only single-row updates of the form 'Sheet'!A<n>:F<n> are issued.
	var n int
	cells := rng[strings.LastIndex(rng, "!")+2:]
	for _, r := range cells {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	sheet := f.sheets[sheetOf(rng)]
	sheet[n-1] = values[0]
	return nil
}

func (f *fakeValues) Append(_ context.Context, _, rng string, values [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "append "+rng)
	name := sheetOf(rng)
	f.sheets[name] = append(f.sheets[name], values...)
	return nil
}

func TestA1QuotesSheetNames(t *testing.T) {
	if got := a1("My Ledger", "A:F"); got != "'My Ledger'!A:F" {
		t.Fatalf("got %q", got)
	}
	if got := a1("Bob's", "A1"); got != "'Bob''s'!A1" {
		t.Fatalf("got %q", got)
	}
}

func TestFindSummaryRow(t *testing.T) {
	values := [][]interface{}{
		{"UserID", "MonthYear", "TotalIncome", "TotalExpense", "CurrentAmount", "Version"},
		{"u1", "2024-02", "1", "0", "1", "4"},
		{"u1", "2024-03", "1", "0", "1", "2"},
		{"u2"},
	}
	cases := []struct {
		user, month string
		row         int
		version     int64
	}{
		{"u1", "2024-03", 3, 2},
		{"u1", "2024-02", 2, 4},
		{"u2", "2024-03", 0, 0},
		{"u3", "2024-01", 0, 0},
	}
	for _, tc := range cases {
		row, v := findSummaryRow(values, tc.user, tc.month)
		if row != tc.row || v != tc.version {
			t.Fatalf("%s %s: got row %d version %d, want %d %d", tc.user, tc.month, row, v, tc.row, tc.version)
		}
	}
}

func TestMissingRowsSkipsSeenIDs(t *testing.T) {
	l := storetest.Ledger("u1", "2024-03", []string{"10", "20"}, []string{"5"})
	existing := [][]interface{}{{"ID"}, {"inc-a"}, {"exp-a"}}

	rows := missingRows(existing, l)
	if len(rows) != 1 || rows[0][0] != "inc-b" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if rows := missingRows(append(existing, []interface{}{"inc-b"}), l); len(rows) != 0 {
		t.Fatalf("expected nothing to append, got %v", rows)
	}
}

func TestExportWritesHeadersAndRows(t *testing.T) {
	fv := newFakeValues()
	c := newClient(fv, Config{SpreadsheetID: "sheet"})
	l := storetest.Ledger("u1", "2024-03", []string{"1000"}, []string{"200"})
	l.Version = 1

	if err := c.Export(context.Background(), l); err != nil {
		t.Fatalf("export: %v", err)
	}

	summary := fv.sheets[DefaultSummarySheet]
	if len(summary) != 2 || summary[0][0] != "UserID" || summary[1][4] != "800" {
		t.Fatalf("unexpected summary sheet: %v", summary)
	}
	txs := fv.sheets[DefaultTransactionsSheet]
	if len(txs) != 3 || txs[0][0] != "ID" {
		t.Fatalf("unexpected transactions sheet: %v", txs)
	}
}

func TestExportIsIdempotentAndUpdatesInPlace(t *testing.T) {
	fv := newFakeValues()
	c := newClient(fv, Config{SpreadsheetID: "sheet"})
	ctx := context.Background()

	l := storetest.Ledger("u1", "2024-03", []string{"1000"}, nil)
	l.Version = 1
	if err := c.Export(ctx, l); err != nil {
		t.Fatal(err)
	}
	if err := c.Export(ctx, l); err != nil {
		t.Fatal(err)
	}

	l2 := storetest.Ledger("u1", "2024-03", []string{"1000"}, []string{"200"})
	l2.Version = 2
	if err := c.Export(ctx, l2); err != nil {
		t.Fatal(err)
	}

	summary := fv.sheets[DefaultSummarySheet]
	if len(summary) != 2 {
		t.Fatalf("expected header plus one summary row, got %d rows", len(summary))
	}
	if summary[1][4] != "800" || summary[1][5] != "2" {
		t.Fatalf("summary row not updated: %v", summary[1])
	}
	if txs := fv.sheets[DefaultTransactionsSheet]; len(txs) != 3 {
		t.Fatalf("expected header plus two transactions, got %d rows", len(txs))
	}
}

func TestExportIgnoresOlderVersion(t *testing.T) {
	fv := newFakeValues()
	c := newClient(fv, Config{SpreadsheetID: "sheet"})
	ctx := context.Background()

	newer := storetest.Ledger("u1", "2024-03", []string{"1000"}, []string{"200"})
	newer.Version = 2
	if err := c.Export(ctx, newer); err != nil {
		t.Fatal(err)
	}
	older := storetest.Ledger("u1", "2024-03", []string{"1000"}, nil)
	older.Version = 1
	if err := c.Export(ctx, older); err != nil {
		t.Fatal(err)
	}
	if got := fv.sheets[DefaultSummarySheet][1][5]; got != "2" {
		t.Fatalf("older export overwrote summary, version %v", got)
	}
}

func TestExportPropagatesErrors(t *testing.T) {
	fv := newFakeValues()
	fv.err = errors.New("quota exceeded")
	c := newClient(fv, Config{SpreadsheetID: "sheet", SummarySheet: "Sum"})

	err := c.Export(context.Background(), storetest.Ledger("u1", "2024-03", nil, nil))
	if err == nil || !strings.Contains(err.Error(), "'Sum'!A:F") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}
