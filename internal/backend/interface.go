package backend

import (
	"context"

	"monthbook/internal/services"
	"monthbook/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired ledger service and the store behind it.
type BackendResult struct {
	Service *services.LedgerService
	Store   store.LedgerStore
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// OpenStore opens only the ledger store, for processes that read ledgers
	// without submitting.
	OpenStore(ctx context.Context, config Config) (store.LedgerStore, CleanupFunc, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	DatabaseURL string

	// Optional ledger-updated events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Ledger services.LedgerConfig
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
