package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	applog "monthbook/internal/log"
	"monthbook/internal/metrics"
	"monthbook/internal/sheets"
	"monthbook/internal/store"
)

const (
	DefaultExportTimeout = 30 * time.Second
	DefaultStoreTimeout  = 5 * time.Second
)

// Consumer delivers ledger-updated messages to a handler until ctx ends.
type Consumer interface {
	ConsumeLedgerUpdates(ctx context.Context, handler func(context.Context, *amqp.LedgerUpdatedMessage) error) error
}

// SyncWorker mirrors stored ledgers into a spreadsheet as update events
// arrive.
type SyncWorker struct {
	store         store.LedgerStore
	exporter      sheets.LedgerExporter
	metrics       *metrics.Metrics
	exportTimeout time.Duration
	storeTimeout  time.Duration
}

func NewSyncWorker(st store.LedgerStore, exporter sheets.LedgerExporter, m *metrics.Metrics) *SyncWorker {
	return &SyncWorker{
		store:         st,
		exporter:      exporter,
		metrics:       m,
		exportTimeout: DefaultExportTimeout,
		storeTimeout:  DefaultStoreTimeout,
	}
}

// SetStoreTimeout bounds each ledger read. Non-positive values are ignored.
func (w *SyncWorker) SetStoreTimeout(d time.Duration) {
	if d > 0 {
		w.storeTimeout = d
	}
}

// Run consumes messages until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context, c Consumer) error {
	slog.InfoContext(ctx, "Sync worker started")
	err := c.ConsumeLedgerUpdates(ctx, w.HandleLedgerUpdated)
	if errors.Is(err, context.Canceled) {
		slog.InfoContext(ctx, "Sync worker stopped")
		return nil
	}
	return err
}

// HandleLedgerUpdated exports the latest stored version of the ledger named
// by msg. The message only identifies the ledger; the store is the source of
// truth, so a late message still exports current data.
func (w *SyncWorker) HandleLedgerUpdated(ctx context.Context, msg *amqp.LedgerUpdatedMessage) error {
	slog.InfoContext(ctx, "Processing ledger updated message",
		"user_id", msg.UserID,
		"month_year", msg.MonthYear,
		"version", msg.Version)

	getCtx, cancelGet := context.WithTimeout(ctx, w.storeTimeout)
	l, err := w.store.Get(getCtx, msg.UserID, msg.MonthYear)
	cancelGet()
	if errors.Is(err, core.ErrNotFound) {
		// Nothing to mirror; redelivery would not change that.
		slog.WarnContext(ctx, "Ledger not found for update message",
			"user_id", msg.UserID,
			"month_year", msg.MonthYear)
		w.metrics.ObserveExport("skipped")
		return nil
	}
	if err != nil {
		w.metrics.ObserveExport("error")
		return fmt.Errorf("get ledger from store: %w", err)
	}

	exportCtx, cancel := context.WithTimeout(ctx, w.exportTimeout)
	defer cancel()
	if err := w.exporter.Export(exportCtx, l); err != nil {
		w.metrics.ObserveExport("error")
		fields := applog.NewFields().
			WithLedger(l.UserID, l.MonthYear).
			WithOperation(applog.OpExport).
			WithComponent(applog.ComponentWorker).
			WithError(err).
			ToSlice()
		slog.ErrorContext(ctx, "Failed to export ledger", append(fields, applog.FieldVersion, l.Version)...)
		return fmt.Errorf("export ledger: %w", err)
	}

	w.metrics.ObserveExport("ok")
	fields := applog.NewFields().
		WithLedger(l.UserID, l.MonthYear).
		WithOperation(applog.OpExport).
		WithComponent(applog.ComponentWorker).
		ToSlice()
	slog.InfoContext(ctx, "Successfully exported ledger", append(fields,
		applog.FieldVersion, l.Version,
		applog.FieldCurrentAmount, l.Calculations.CurrentAmount.String())...)
	return nil
}
