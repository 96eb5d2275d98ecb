// Package store defines the persistence port for monthly ledgers.
package store

import (
	"context"

	"monthbook/internal/core"
)

// LedgerStore persists MonthlyLedgers keyed by (userID, monthYear).
//
// Get returns core.ErrNotFound when no ledger exists for the key.
//
// Put writes ledger iff the stored version equals ledger.Version (0 meaning
// "not stored yet") and returns the new version. Any other stored version
// yields core.ErrConflict and leaves the stored ledger untouched. Tables,
// rows and calculations are written atomically.
type LedgerStore interface {
	Get(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error)
	Put(ctx context.Context, ledger core.MonthlyLedger) (int64, error)
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by stores holding resources.
type Closer interface {
	Close() error
}
