// Package memory provides an in-process LedgerStore. It is the default
// backend for local runs and the reference implementation in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"monthbook/internal/core"
	"monthbook/internal/store"
)

// Store keeps ledgers in a map guarded by a single mutex. Version checks
// and writes happen under the same lock.
type Store struct {
	mu      sync.Mutex
	ledgers map[string]core.MonthlyLedger
	now     func() time.Time
}

var _ store.LedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{
		ledgers: make(map[string]core.MonthlyLedger),
		now:     time.Now,
	}
}

func key(userID, monthYear string) string {
	return core.Identity{UserID: userID, MonthYear: monthYear}.Key()
}

// Get returns a deep copy of the stored ledger.
func (s *Store) Get(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error) {
	if err := ctx.Err(); err != nil {
		return core.MonthlyLedger{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[key(userID, monthYear)]
	if !ok {
		return core.MonthlyLedger{}, core.ErrNotFound
	}
	return l.Clone(), nil
}

// Put stores a copy of ledger when its version matches the stored one.
func (s *Store) Put(ctx context.Context, ledger core.MonthlyLedger) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(ledger.UserID, ledger.MonthYear)
	current, exists := s.ledgers[k]
	var stored int64
	if exists {
		stored = current.Version
	}
	if stored != ledger.Version {
		return 0, core.ErrConflict
	}

	next := ledger.Clone()
	next.Version = stored + 1
	now := s.now().UTC()
	if exists {
		next.CreatedAt = current.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	s.ledgers[k] = next
	return next.Version, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored ledgers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledgers)
}
