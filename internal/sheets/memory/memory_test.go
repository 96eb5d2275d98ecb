package memory

import (
	"context"
	"testing"

	"monthbook/internal/store/storetest"
)

func TestExporterUpsertsSummaryAndDedupesRows(t *testing.T) {
	e := New()
	ctx := context.Background()

	l := storetest.Ledger("u1", "2024-03", []string{"1000"}, nil)
	l.Version = 1
	if err := e.Export(ctx, l); err != nil {
		t.Fatal(err)
	}
	l2 := storetest.Ledger("u1", "2024-03", []string{"1000"}, []string{"200"})
	l2.Version = 2
	if err := e.Export(ctx, l2); err != nil {
		t.Fatal(err)
	}
	// Replaying the first event must not roll the summary back.
	if err := e.Export(ctx, l); err != nil {
		t.Fatal(err)
	}

	sums := e.Summaries()
	if len(sums) != 1 || sums[0][4] != "800" || sums[0][5] != "2" {
		t.Fatalf("unexpected summaries: %v", sums)
	}
	if txs := e.Transactions(); len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %v", txs)
	}
}

func TestExporterKeepsLedgersApart(t *testing.T) {
	e := New()
	ctx := context.Background()
	a := storetest.Ledger("u1", "2024-03", []string{"1"}, nil)
	b := storetest.Ledger("u2", "2024-03", []string{"2"}, nil)
	b.Income.Rows[0].ID = "other"
	if err := e.Export(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := e.Export(ctx, b); err != nil {
		t.Fatal(err)
	}
	sums := e.Summaries()
	if len(sums) != 2 || sums[0][0] != "u1" || sums[1][0] != "u2" {
		t.Fatalf("unexpected summaries: %v", sums)
	}
}

func TestExporterHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Export(ctx, storetest.Ledger("u1", "2024-03", nil, nil)); err == nil {
		t.Fatalf("expected context error")
	}
}
