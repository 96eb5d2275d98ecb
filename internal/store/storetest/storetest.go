// Package storetest holds behaviour checks shared by every LedgerStore
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"monthbook/internal/core"
	"monthbook/internal/store"
)

// Ledger builds a ledger for user/monthYear with the given income and
// expense amounts, one row each.
func Ledger(userID, monthYear string, income, expense []string) core.MonthlyLedger {
	mk, err := core.ParseMonthYear(monthYear)
	if err != nil {
		panic(err)
	}
	l := core.NewLedger(mk.Identity(userID))
	day := core.NewDate(mk.Year, mk.Month, 1)
	for i, a := range income {
		l.Income.Rows = append(l.Income.Rows, core.Transaction{
			ID: "inc-" + string(rune('a'+i)), Date: day, Category: "Salary", Amount: decimal.RequireFromString(a),
		})
	}
	for i, a := range expense {
		l.Expense.Rows = append(l.Expense.Rows, core.Transaction{
			ID: "exp-" + string(rune('a'+i)), Date: day, Category: "Rent", Amount: decimal.RequireFromString(a),
		})
	}
	l.Calculations = core.Fold(l)
	return l
}

// Run exercises the LedgerStore contract against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.LedgerStore) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "nobody", "2024-03")
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		in := Ledger("u1", "2024-03", []string{"1000", "0.10"}, []string{"200.55"})

		v, err := s.Put(ctx, in)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if v != 1 {
			t.Fatalf("expected version 1, got %d", v)
		}

		got, err := s.Get(ctx, "u1", "2024-03")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != 1 {
			t.Fatalf("stored version = %d", got.Version)
		}
		if got.MonthNumber != "03" {
			t.Fatalf("monthNumber = %q", got.MonthNumber)
		}
		if len(got.Income.Rows) != 2 || len(got.Expense.Rows) != 1 {
			t.Fatalf("unexpected rows: %d/%d", len(got.Income.Rows), len(got.Expense.Rows))
		}
		if got.Income.Rows[0].ID != "inc-a" || got.Income.Rows[1].ID != "inc-b" {
			t.Fatalf("row order not preserved: %+v", got.Income.Rows)
		}
		if got.Income.Rows[1].Date.String() != "2024-03-01" || got.Income.Rows[1].Category != "Salary" {
			t.Fatalf("row fields not preserved: %+v", got.Income.Rows[1])
		}
		if !got.Calculations.Equal(in.Calculations) {
			t.Fatalf("calculations = %+v, want %+v", got.Calculations, in.Calculations)
		}
		if !got.Consistent() {
			t.Fatalf("stored ledger inconsistent")
		}
		if got.Income.Name != core.Income || got.Expense.Name != core.Expense {
			t.Fatalf("table names lost: %q %q", got.Income.Name, got.Expense.Name)
		}
		if len(got.Income.Columns) != 3 {
			t.Fatalf("columns lost: %v", got.Income.Columns)
		}
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, l := range []core.MonthlyLedger{
			Ledger("u1", "2024-03", []string{"1"}, nil),
			Ledger("u1", "2024-04", []string{"2"}, nil),
			Ledger("u2", "2024-03", []string{"3"}, nil),
		} {
			if _, err := s.Put(ctx, l); err != nil {
				t.Fatalf("put %s/%s: %v", l.UserID, l.MonthYear, err)
			}
		}
		got, err := s.Get(ctx, "u1", "2024-04")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Calculations.TotalIncome.Equal(decimal.NewFromInt(2)) {
			t.Fatalf("wrong ledger returned: %s", got.Calculations.TotalIncome)
		}
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := Ledger("u1", "2024-03", []string{"1"}, nil)
		if _, err := s.Put(ctx, first); err != nil {
			t.Fatal(err)
		}
		// A second creator still believes nothing is stored.
		if _, err := s.Put(ctx, first); !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
		}

		current, err := s.Get(ctx, "u1", "2024-03")
		if err != nil {
			t.Fatal(err)
		}
		next := Ledger("u1", "2024-03", []string{"1", "2"}, nil)
		next.Version = current.Version
		v, err := s.Put(ctx, next)
		if err != nil {
			t.Fatalf("put with current version: %v", err)
		}
		if v != 2 {
			t.Fatalf("expected version 2, got %d", v)
		}

		// Writing again from the old read loses the race.
		stale := Ledger("u1", "2024-03", []string{"1", "9"}, nil)
		stale.Version = current.Version
		if _, err := s.Put(ctx, stale); !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		got, err := s.Get(ctx, "u1", "2024-03")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Calculations.TotalIncome.Equal(decimal.NewFromInt(3)) {
			t.Fatalf("conflicting put changed the ledger: %s", got.Calculations.TotalIncome)
		}
	})

	t.Run("ConcurrentCreateHasOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const n = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			winners  int
			conflict int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Put(ctx, Ledger("u1", "2024-05", []string{"1"}, nil))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, core.ErrConflict):
					conflict++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if winners != 1 || conflict != n-1 {
			t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, winners, conflict)
		}
	})
	t.Run("ReadsDuringWritesAreConsistent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const writes = 200

		done := make(chan struct{})
		var wg sync.WaitGroup
		for r := 0; r < 2; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					l, err := s.Get(ctx, "u1", "2024-06")
					if errors.Is(err, core.ErrNotFound) {
						continue
					}
					if err != nil {
						t.Errorf("get: %v", err)
						return
					}
					if !l.Consistent() {
						t.Errorf("version %d: totalIncome=%s with %d rows",
							l.Version, l.Calculations.TotalIncome, len(l.Income.Rows))
						return
					}
				}
			}()
		}

		l := core.NewLedger(core.Identity{UserID: "u1", MonthYear: "2024-06", MonthNumber: "06"})
		for i := 0; i < writes; i++ {
			l.Income.Rows = append(l.Income.Rows, core.Transaction{
				ID:       fmt.Sprintf("inc-%03d", i),
				Date:     core.NewDate(2024, 6, 1),
				Category: "Salary",
				Amount:   decimal.NewFromInt(1),
			})
			l.Calculations = core.Fold(l)
			v, err := s.Put(ctx, l)
			if err != nil {
				close(done)
				wg.Wait()
				t.Fatalf("put %d: %v", i, err)
			}
			l.Version = v
		}
		close(done)
		wg.Wait()
	})
}
