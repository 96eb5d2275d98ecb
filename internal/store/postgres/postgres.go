// Package postgres is the PostgreSQL LedgerStore.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"monthbook/internal/core"
	"monthbook/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

var _ store.LedgerStore = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Get reads the header and rows from one repeatable-read snapshot, so the
// totals always match the rows returned with them.
func (s *Store) Get(ctx context.Context, userID, monthYear string) (core.MonthlyLedger, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		l                       core.MonthlyLedger
		income, expense, amount string
	)
	err = tx.QueryRowContext(ctx, `
		select month_number, total_income::text, total_expense::text, current_amount::text,
		       version, created_at, updated_at
		from ledgers where user_id=$1 and month_year=$2
	`, userID, monthYear).Scan(&l.MonthNumber, &income, &expense, &amount, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyLedger{}, core.ErrNotFound
	}
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("get ledger: %w", err)
	}

	out := core.NewLedger(core.Identity{UserID: userID, MonthYear: monthYear, MonthNumber: l.MonthNumber})
	out.Version, out.CreatedAt, out.UpdatedAt = l.Version, l.CreatedAt, l.UpdatedAt
	if out.Calculations, err = parseCalculations(income, expense, amount); err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("decode ledger %s/%s: %w", userID, monthYear, err)
	}

	rows, err := tx.QueryContext(ctx, `
		select table_name, id, date::text, category, amount::text
		from ledger_rows where user_id=$1 and month_year=$2
		order by table_name, position
	`, userID, monthYear)
	if err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("list ledger rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, id, date, category, amt string
		if err := rows.Scan(&tableName, &id, &date, &category, &amt); err != nil {
			return core.MonthlyLedger{}, fmt.Errorf("scan ledger row: %w", err)
		}
		table := out.Table(core.TableName(tableName))
		if table == nil {
			return core.MonthlyLedger{}, fmt.Errorf("unknown table %q", tableName)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return core.MonthlyLedger{}, fmt.Errorf("decode row %s: %w", id, err)
		}
		a, err := decimal.NewFromString(amt)
		if err != nil {
			return core.MonthlyLedger{}, fmt.Errorf("decode row %s: %w", id, err)
		}
		table.Rows = append(table.Rows, core.Transaction{ID: id, Date: d, Category: category, Amount: a})
	}
	if err := rows.Err(); err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("list ledger rows: %w", err)
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, ledger core.MonthlyLedger) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := ledger.Calculations
	var res sql.Result
	if ledger.Version == 0 {
		res, err = tx.ExecContext(ctx, `
			insert into ledgers(user_id, month_year, month_number, total_income, total_expense, current_amount, version, created_at, updated_at)
			values ($1,$2,$3,$4,$5,$6,1,now(),now())
			on conflict (user_id, month_year) do nothing
		`, ledger.UserID, ledger.MonthYear, ledger.MonthNumber,
			c.TotalIncome.String(), c.TotalExpense.String(), c.CurrentAmount.String())
	} else {
		res, err = tx.ExecContext(ctx, `
			update ledgers
			set month_number=$3, total_income=$4, total_expense=$5, current_amount=$6,
			    version=version+1, updated_at=now()
			where user_id=$1 and month_year=$2 and version=$7
		`, ledger.UserID, ledger.MonthYear, ledger.MonthNumber,
			c.TotalIncome.String(), c.TotalExpense.String(), c.CurrentAmount.String(), ledger.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("write ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write ledger: %w", err)
	}
	if n == 0 {
		return 0, core.ErrConflict
	}

	for _, table := range ledger.Tables() {
		for pos, row := range table.Rows {
			if _, err := tx.ExecContext(ctx, `
				insert into ledger_rows(user_id, month_year, table_name, position, id, date, category, amount)
				values ($1,$2,$3,$4,$5,$6,$7,$8)
				on conflict do nothing
			`, ledger.UserID, ledger.MonthYear, table.Name.String(), pos,
				row.ID, row.Date.String(), row.Category, row.Amount.String()); err != nil {
				return 0, fmt.Errorf("insert ledger row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ledger: %w", err)
	}
	return ledger.Version + 1, nil
}

func parseCalculations(income, expense, current string) (core.Calculations, error) {
	var (
		c   core.Calculations
		err error
	)
	if c.TotalIncome, err = decimal.NewFromString(income); err != nil {
		return c, fmt.Errorf("total income: %w", err)
	}
	if c.TotalExpense, err = decimal.NewFromString(expense); err != nil {
		return c, fmt.Errorf("total expense: %w", err)
	}
	if c.CurrentAmount, err = decimal.NewFromString(current); err != nil {
		return c, fmt.Errorf("current amount: %w", err)
	}
	return c, nil
}
