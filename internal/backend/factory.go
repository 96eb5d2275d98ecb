package backend

import (
	"context"
	"fmt"
	"log/slog"

	"monthbook/internal/amqp"
	"monthbook/internal/metrics"
	"monthbook/internal/services"
	"monthbook/internal/storage"
	"monthbook/internal/store"
	"monthbook/internal/store/memory"
	"monthbook/internal/store/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. m may be nil.
func NewFactory(logger *slog.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:  logger,
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	// The service's Close closes the store, so the store cleanup is unused.
	st, _, err := f.OpenStore(ctx, config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithConfig(config.Ledger),
		services.WithMetrics(f.metrics),
	}
	// A nil *amqp.Client must not reach the service as a non-nil Publisher.
	if client := f.openPublisher(config); client != nil {
		opts = append(opts, services.WithPublisher(client))
	}

	svc := services.NewLedgerService(st, opts...)

	f.logger.Info("Initialized ledger backend",
		"backend", config.Type,
		"max_retries", config.Ledger.MaxRetries,
		"store_timeout", config.Ledger.StoreTimeout,
		"amqp_enabled", config.AMQPURL != "")

	return &BackendResult{
		Service: svc,
		Store:   st,
		Cleanup: svc.Close,
	}, nil
}

// OpenStore implements Factory.OpenStore
func (f *DefaultFactory) OpenStore(ctx context.Context, config Config) (store.LedgerStore, CleanupFunc, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory store")
		return memory.New(), func() error { return nil }, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil

	case PostgresBackend:
		pg, err := postgres.Open(config.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		if err := pg.Migrate(); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL store")
		return pg, pg.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
