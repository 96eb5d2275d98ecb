package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Ledger is a row of the ledgers table.
type Ledger struct {
	UserID        string
	MonthYear     string
	MonthNumber   string
	TotalIncome   string
	TotalExpense  string
	CurrentAmount string
	Version       int64
	CreatedAt     string
	UpdatedAt     string
}

// LedgerRow is a row of the ledger_rows table.
type LedgerRow struct {
	UserID    string
	MonthYear string
	TableName string
	Position  int64
	ID        string
	Date      string
	Category  string
	Amount    string
}

const getLedger = `
SELECT user_id, month_year, month_number, total_income, total_expense, current_amount, version, created_at, updated_at
FROM ledgers
WHERE user_id = ? AND month_year = ?
`

func (q *Queries) GetLedger(ctx context.Context, userID, monthYear string) (Ledger, error) {
	row := q.db.QueryRowContext(ctx, getLedger, userID, monthYear)
	var i Ledger
	err := row.Scan(
		&i.UserID,
		&i.MonthYear,
		&i.MonthNumber,
		&i.TotalIncome,
		&i.TotalExpense,
		&i.CurrentAmount,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listLedgerRows = `
SELECT user_id, month_year, table_name, position, id, date, category, amount
FROM ledger_rows
WHERE user_id = ? AND month_year = ?
ORDER BY table_name, position
`

func (q *Queries) ListLedgerRows(ctx context.Context, userID, monthYear string) ([]LedgerRow, error) {
	rows, err := q.db.QueryContext(ctx, listLedgerRows, userID, monthYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerRow
	for rows.Next() {
		var i LedgerRow
		if err := rows.Scan(
			&i.UserID,
			&i.MonthYear,
			&i.TableName,
			&i.Position,
			&i.ID,
			&i.Date,
			&i.Category,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertLedger = `
INSERT INTO ledgers (user_id, month_year, month_number, total_income, total_expense, current_amount, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (user_id, month_year) DO NOTHING
`

type InsertLedgerParams struct {
	UserID        string
	MonthYear     string
	MonthNumber   string
	TotalIncome   string
	TotalExpense  string
	CurrentAmount string
	CreatedAt     string
	UpdatedAt     string
}

// InsertLedger returns the number of rows inserted: 0 when the key exists.
func (q *Queries) InsertLedger(ctx context.Context, arg InsertLedgerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertLedger,
		arg.UserID,
		arg.MonthYear,
		arg.MonthNumber,
		arg.TotalIncome,
		arg.TotalExpense,
		arg.CurrentAmount,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateLedger = `
UPDATE ledgers
SET month_number = ?, total_income = ?, total_expense = ?, current_amount = ?, version = version + 1, updated_at = ?
WHERE user_id = ? AND month_year = ? AND version = ?
`

type UpdateLedgerParams struct {
	MonthNumber     string
	TotalIncome     string
	TotalExpense    string
	CurrentAmount   string
	UpdatedAt       string
	UserID          string
	MonthYear       string
	ExpectedVersion int64
}

// UpdateLedger returns the number of rows updated: 0 on a version mismatch.
func (q *Queries) UpdateLedger(ctx context.Context, arg UpdateLedgerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateLedger,
		arg.MonthNumber,
		arg.TotalIncome,
		arg.TotalExpense,
		arg.CurrentAmount,
		arg.UpdatedAt,
		arg.UserID,
		arg.MonthYear,
		arg.ExpectedVersion,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertLedgerRow = `
INSERT INTO ledger_rows (user_id, month_year, table_name, position, id, date, category, amount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, month_year, table_name, position) DO NOTHING
`

func (q *Queries) InsertLedgerRow(ctx context.Context, arg LedgerRow) error {
	_, err := q.db.ExecContext(ctx, insertLedgerRow,
		arg.UserID,
		arg.MonthYear,
		arg.TableName,
		arg.Position,
		arg.ID,
		arg.Date,
		arg.Category,
		arg.Amount,
	)
	return err
}
