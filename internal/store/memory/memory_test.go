package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"monthbook/internal/store"
	"monthbook/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.LedgerStore { return New() })
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Put(ctx, storetest.Ledger("u1", "2024-03", []string{"5"}, nil)); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "u1", "2024-03")
	got.Income.Rows[0].Category = "mutated"

	again, _ := s.Get(ctx, "u1", "2024-03")
	if again.Income.Rows[0].Category != "Salary" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestTimestamps(t *testing.T) {
	s := New()
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	ctx := context.Background()

	if _, err := s.Put(ctx, storetest.Ledger("u1", "2024-03", []string{"5"}, nil)); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }
	next := storetest.Ledger("u1", "2024-03", []string{"5", "6"}, nil)
	next.Version = 1
	if _, err := s.Put(ctx, next); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "u1", "2024-03")
	if !got.CreatedAt.Equal(t0) {
		t.Fatalf("createdAt = %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Get(ctx, "u1", "2024-03"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.Put(ctx, storetest.Ledger("u1", "2024-03", nil, nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("cancelled put stored a ledger")
	}
}
