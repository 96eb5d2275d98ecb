package storage

import (
	"context"
	"path/filepath"
	"testing"

	"monthbook/internal/store"
	"monthbook/internal/store/storetest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledgers.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.LedgerStore { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgers.db")
	first, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Put(context.Background(), storetest.Ledger("u1", "2024-03", []string{"10"}, nil)); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.Get(context.Background(), "u1", "2024-03")
	if err != nil {
		t.Fatalf("ledger lost across reopen: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d", got.Version)
	}
}

func TestPutPreservesDecimalPrecision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	in := storetest.Ledger("u1", "2024-03", []string{"0.1", "0.2"}, []string{"0.3"})
	if _, err := repo.Put(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "u1", "2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Calculations.CurrentAmount.IsZero() {
		t.Fatalf("currentAmount = %s, want 0", got.Calculations.CurrentAmount)
	}
	if got.Income.Rows[0].Amount.String() != "0.1" {
		t.Fatalf("amount = %s", got.Income.Rows[0].Amount)
	}
}

func TestPing(t *testing.T) {
	if err := newTestRepo(t).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
