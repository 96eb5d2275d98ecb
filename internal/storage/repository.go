package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"monthbook/internal/core"
	"monthbook/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the SQLite LedgerStore. Ledger headers live in
// ledgers, their table rows in ledger_rows keyed by position.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ store.LedgerStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get implements store.LedgerStore
// The header and its rows are read in one transaction so the totals always
// match the rows returned with them.
func (r *SQLiteRepository) Get(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	head, err := q.GetLedger(ctx, userID, monthYear)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyLedger{}, core.ErrNotFound
	}
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("get ledger: %w", err)
	}

	rows, err := q.ListLedgerRows(ctx, userID, monthYear)
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("list ledger rows: %w", err)
	}

	ledger, err := toLedger(head, rows)
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("decode ledger %s/%s: %w", userID, monthYear, err)
	}
	return ledger, nil
}

// Put implements store.LedgerStore
func (r *SQLiteRepository) Put(ctx context.Context, ledger core.MonthlyLedger) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	now := r.now().UTC().Format(timeLayout)

	var affected int64
	if ledger.Version == 0 {
		affected, err = q.InsertLedger(ctx, InsertLedgerParams{
			UserID:        ledger.UserID,
			MonthYear:     ledger.MonthYear,
			MonthNumber:   ledger.MonthNumber,
			TotalIncome:   ledger.Calculations.TotalIncome.String(),
			TotalExpense:  ledger.Calculations.TotalExpense.String(),
			CurrentAmount: ledger.Calculations.CurrentAmount.String(),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	} else {
		affected, err = q.UpdateLedger(ctx, UpdateLedgerParams{
			MonthNumber:     ledger.MonthNumber,
			TotalIncome:     ledger.Calculations.TotalIncome.String(),
			TotalExpense:    ledger.Calculations.TotalExpense.String(),
			CurrentAmount:   ledger.Calculations.CurrentAmount.String(),
			UpdatedAt:       now,
			UserID:          ledger.UserID,
			MonthYear:       ledger.MonthYear,
			ExpectedVersion: ledger.Version,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("write ledger: %w", err)
	}
	if affected == 0 {
		return 0, core.ErrConflict
	}

	// Rows are append-only: positions already stored are left as they are.
	for _, table := range ledger.Tables() {
		for pos, row := range table.Rows {
			err := q.InsertLedgerRow(ctx, LedgerRow{
				UserID:    ledger.UserID,
				MonthYear: ledger.MonthYear,
				TableName: table.Name.String(),
				Position:  int64(pos),
				ID:        row.ID,
				Date:      row.Date.String(),
				Category:  row.Category,
				Amount:    row.Amount.String(),
			})
			if err != nil {
				return 0, fmt.Errorf("insert ledger row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ledger: %w", err)
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite",
		"user_id", ledger.UserID,
		"month_year", ledger.MonthYear,
		"version", ledger.Version+1)

	return ledger.Version + 1, nil
}

func toLedger(head Ledger, rows []LedgerRow) (core.MonthlyLedger, error) {
	l := core.NewLedger(core.Identity{
		UserID:      head.UserID,
		MonthYear:   head.MonthYear,
		MonthNumber: head.MonthNumber,
	})
	l.Version = head.Version

	var err error
	if l.Calculations.TotalIncome, err = decimal.NewFromString(head.TotalIncome); err != nil {
		return l, fmt.Errorf("total income: %w", err)
	}
	if l.Calculations.TotalExpense, err = decimal.NewFromString(head.TotalExpense); err != nil {
		return l, fmt.Errorf("total expense: %w", err)
	}
	if l.Calculations.CurrentAmount, err = decimal.NewFromString(head.CurrentAmount); err != nil {
		return l, fmt.Errorf("current amount: %w", err)
	}
	if l.CreatedAt, err = time.Parse(timeLayout, head.CreatedAt); err != nil {
		return l, fmt.Errorf("created at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(timeLayout, head.UpdatedAt); err != nil {
		return l, fmt.Errorf("updated at: %w", err)
	}

	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return l, err
		}
		table := l.Table(core.TableName(row.TableName))
		if table == nil {
			return l, fmt.Errorf("unknown table %q", row.TableName)
		}
		table.Rows = append(table.Rows, tx)
	}
	return l, nil
}

func toTransaction(row LedgerRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %d date: %w", row.Position, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %d amount: %w", row.Position, err)
	}
	return core.Transaction{
		ID:       row.ID,
		Date:     date,
		Category: row.Category,
		Amount:   amount,
	}, nil
}
