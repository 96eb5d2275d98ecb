package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"monthbook/internal/cache"
	"monthbook/internal/core"
	"monthbook/internal/ids"
	applog "monthbook/internal/log"
	"monthbook/internal/metrics"
	"monthbook/internal/store"
)

const (
	DefaultMaxRetries   = 3
	DefaultStoreTimeout = 5 * time.Second
	DefaultCacheSize    = 1000
	DefaultCacheTTL     = 30 * time.Second
)

// Publisher announces persisted ledgers to other processes.
type Publisher interface {
	PublishLedgerUpdated(ctx context.Context, userID, monthYear string, version int64) error
}

// LedgerConfig tunes the fetch-merge-persist cycle.
type LedgerConfig struct {
	// MaxRetries is the number of extra cycles run after a write conflict.
	MaxRetries int
	// StoreTimeout bounds each individual store call.
	StoreTimeout time.Duration
	// StrictDates rejects transactions dated outside the submitted month.
	StrictDates bool
	CacheSize   int
	CacheTTL    time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRetries:   DefaultMaxRetries,
		StoreTimeout: DefaultStoreTimeout,
		CacheSize:    DefaultCacheSize,
		CacheTTL:     DefaultCacheTTL,
	}
}

// SubmitRequest carries a submission as received from a client. Month, Year
// and Amount are raw strings and are normalized by the service.
type SubmitRequest struct {
	UserID   string
	Type     string
	Amount   string
	Category string
	Month    string
	Year     string
	Date     string
}

// SubmitResult is returned by a successful submission.
type SubmitResult struct {
	MonthYear     string
	Calculations  core.Calculations
	Version       int64
	TransactionID string
}

// LedgerService validates submissions and runs them through the store with
// optimistic retry. It is safe for concurrent use.
type LedgerService struct {
	store     store.LedgerStore
	publisher Publisher
	metrics   *metrics.Metrics
	cfg       LedgerConfig
	summaries *cache.Loading[core.MonthlyLedger]
	lru       *cache.LRUCache[core.MonthlyLedger]
	newID     func() string
	now       func() time.Time
}

type Option func(*LedgerService)

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithConfig(cfg LedgerConfig) Option {
	return func(s *LedgerService) { s.cfg = cfg }
}

// WithIDGenerator replaces the transaction id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *LedgerService) { s.newID = fn }
}

// WithClock replaces the time source used for ledger timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *LedgerService) { s.now = fn }
}

func NewLedgerService(st store.LedgerStore, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: st,
		cfg:   DefaultLedgerConfig(),
		newID: ids.New,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxRetries < 0 {
		s.cfg.MaxRetries = 0
	}
	if s.cfg.StoreTimeout <= 0 {
		s.cfg.StoreTimeout = DefaultStoreTimeout
	}
	if s.cfg.CacheSize <= 0 {
		s.cfg.CacheSize = DefaultCacheSize
	}

	s.lru = cache.NewLRUCache[core.MonthlyLedger](s.cfg.CacheSize, s.cfg.CacheTTL)
	s.summaries = cache.NewLoading[core.MonthlyLedger](s.lru, func(cached, value core.MonthlyLedger) bool {
		return value.Version >= cached.Version
	})
	return s
}

// SummaryCache exposes the summary LRU for periodic cleanup.
func (s *LedgerService) SummaryCache() cache.Cleaner {
	return s.lru
}

// SubmitTransaction validates req, merges it into the ledger for its
// (user, month) key and persists the result. On a write conflict the whole
// fetch-merge-persist cycle is repeated up to MaxRetries times.
func (s *LedgerService) SubmitTransaction(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	tableName := "unknown"
	if t, err := core.ParseTableName(req.Type); err == nil {
		tableName = t.String()
	}
	id, entry, err := s.prepare(req)
	if err != nil {
		s.metrics.ObserveSubmission(tableName, resultLabel(err))
		return SubmitResult{}, err
	}

	var ledger core.MonthlyLedger
	for attempt := 0; ; attempt++ {
		ledger, err = s.apply(ctx, id, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, core.ErrConflict) {
			s.metrics.ObserveSubmission(tableName, resultLabel(err))
			return SubmitResult{}, err
		}
		s.metrics.IncConflict()
		if attempt >= s.cfg.MaxRetries {
			slog.WarnContext(ctx, "Ledger write conflict, retries exhausted",
				"user_id", id.UserID,
				"month_year", id.MonthYear,
				"attempts", attempt+1)
			s.metrics.ObserveSubmission(tableName, resultLabel(err))
			return SubmitResult{}, fmt.Errorf("submit transaction after %d attempts: %w", attempt+1, err)
		}
		s.metrics.IncRetry()
		slog.DebugContext(ctx, "Ledger write conflict, retrying",
			"user_id", id.UserID,
			"month_year", id.MonthYear,
			"attempt", attempt+1)
	}

	s.summaries.Set(id.Key(), ledger.Clone())
	s.metrics.ObserveSubmission(tableName, "ok")

	fields := applog.NewFields().
		WithLedger(id.UserID, id.MonthYear).
		WithTransaction(entry.Type.String(), entry.Transaction.Category, entry.Transaction.Amount.String()).
		WithOperation(applog.OpSubmit).
		WithComponent(applog.ComponentLedger).
		ToSlice()
	slog.InfoContext(ctx, "Transaction submitted", append(fields, applog.FieldVersion, ledger.Version)...)

	s.publish(ctx, ledger)

	return SubmitResult{
		MonthYear:     ledger.MonthYear,
		Calculations:  ledger.Calculations,
		Version:       ledger.Version,
		TransactionID: entry.Transaction.ID,
	}, nil
}

// prepare runs every input check before any I/O happens.
func (s *LedgerService) prepare(req SubmitRequest) (core.Identity, core.Entry, error) {
	userID := strings.TrimSpace(req.UserID)
	if err := core.ValidateUserID(userID); err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	mk, err := core.ParseMonthKey(req.Month, req.Year)
	if err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	tableName, err := core.ParseTableName(req.Type)
	if err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	if s.cfg.StrictDates && !mk.Contains(date) {
		return core.Identity{}, core.Entry{}, core.NewValidationError("date", "must fall within "+mk.MonthYear())
	}

	entry := core.Entry{
		Type: tableName,
		Transaction: core.Transaction{
			ID:       s.newID(),
			Date:     date,
			Category: strings.TrimSpace(req.Category),
			Amount:   amount,
		},
	}
	if err := entry.Validate(); err != nil {
		return core.Identity{}, core.Entry{}, err
	}
	return mk.Identity(userID), entry, nil
}

// apply runs one fetch-merge-persist cycle.
func (s *LedgerService) apply(ctx context.Context, id core.Identity, entry core.Entry) (core.MonthlyLedger, error) {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return core.MonthlyLedger{}, err
	}

	merged, err := core.Merge(existing, entry, id)
	if err != nil {
		return core.MonthlyLedger{}, err
	}

	now := s.now().UTC()
	if existing == nil {
		merged.CreatedAt = now
	}
	merged.UpdatedAt = now

	version, err := s.persist(ctx, merged)
	if err != nil {
		return core.MonthlyLedger{}, err
	}
	merged.Version = version
	return merged, nil
}

// fetch returns nil, nil when no ledger exists yet.
func (s *LedgerService) fetch(ctx context.Context, id core.Identity) (*core.MonthlyLedger, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	l, err := s.store.Get(ctx, id.UserID, id.MonthYear)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StoreUnavailableError{Op: "get", Err: err}
	}
	return &l, nil
}

func (s *LedgerService) persist(ctx context.Context, l core.MonthlyLedger) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	version, err := s.store.Put(ctx, l)
	if errors.Is(err, core.ErrConflict) {
		return 0, core.ErrConflict
	}
	if err != nil {
		return 0, &core.StoreUnavailableError{Op: "put", Err: err}
	}
	return version, nil
}

func (s *LedgerService) publish(ctx context.Context, l core.MonthlyLedger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerUpdated(ctx, l.UserID, l.MonthYear, l.Version); err != nil {
		s.metrics.IncPublishFailure()
		// The ledger is already durable; the mirror catches up on the next update.
		fields := applog.NewFields().
			WithLedger(l.UserID, l.MonthYear).
			WithOperation(applog.OpPublish).
			WithComponent(applog.ComponentLedger).
			WithError(err).
			ToSlice()
		slog.ErrorContext(ctx, "Failed to publish ledger updated message", append(fields, applog.FieldVersion, l.Version)...)
	}
}

// GetMonthlySummary returns the full ledger stored under the exact
// (userID, monthYear) key. monthYear must be canonical YYYY-MM.
func (s *LedgerService) GetMonthlySummary(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error) {
	userID = strings.TrimSpace(userID)
	if err := core.ValidateUserID(userID); err != nil {
		return core.MonthlyLedger{}, err
	}
	mk, err := core.ParseMonthYear(monthYear)
	if err != nil {
		return core.MonthlyLedger{}, err
	}
	if mk.MonthYear() != monthYear {
		return core.MonthlyLedger{}, core.NewValidationError("monthYear", "must be formatted as YYYY-MM")
	}
	id := mk.Identity(userID)

	l, hit, err := s.summaries.Get(id.Key(), func() (core.MonthlyLedger, error) {
		// Shared by every caller waiting on this key, so one caller
		// giving up must not fail the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
		defer cancel()

		l, err := s.store.Get(loadCtx, id.UserID, id.MonthYear)
		if errors.Is(err, core.ErrNotFound) {
			return core.MonthlyLedger{}, core.ErrNotFound
		}
		if err != nil {
			return core.MonthlyLedger{}, &core.StoreUnavailableError{Op: "get", Err: err}
		}
		return l, nil
	})
	source := "store"
	if hit {
		source = "cache"
	}
	if err != nil {
		s.metrics.ObserveSummaryRead(source, resultLabel(err))
		return core.MonthlyLedger{}, fmt.Errorf("get monthly summary %s: %w", id.MonthYear, err)
	}
	s.metrics.ObserveSummaryRead(source, "ok")
	return l.Clone(), nil
}

// Categories returns the advisory vocabulary for a table type.
func (s *LedgerService) Categories(rawType string) ([]string, error) {
	t, err := core.ParseTableName(rawType)
	if err != nil {
		return nil, err
	}
	return core.CategoriesFor(t), nil
}

// Ready reports whether the store is reachable.
func (s *LedgerService) Ready(ctx context.Context) error {
	p, ok := s.store.(store.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return &core.StoreUnavailableError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(store.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsValidation(err):
		return "invalid"
	case errors.Is(err, core.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case core.IsStoreUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
