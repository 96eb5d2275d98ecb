package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TableName = "INCOME"
	Expense TableName = "EXPENSE"
)

const dateLayout = "2006-01-02"

// Length limits, in runes. Longer values are rejected, never shortened.
const (
	MaxUserIDLength   = 200
	MaxCategoryLength = 200
)

// DefaultColumns are the display columns every ledger table carries.
var DefaultColumns = []string{"Date", "Category", "Amount"}

type (
	// TableName selects one of the two tables of a MonthlyLedger.
	TableName string

	Date struct {
		time.Time
	}

	// Transaction is a single row of a ledger table. Its sign is carried by
	// the table it belongs to, never by Amount.
	Transaction struct {
		ID       string
		Date     Date
		Category string
		Amount   decimal.Decimal
	}

	Table struct {
		Name    TableName
		Columns []string
		Rows    []Transaction
	}

	// Calculations is derived from the ledger tables and never set directly.
	Calculations struct {
		TotalIncome   decimal.Decimal
		TotalExpense  decimal.Decimal
		CurrentAmount decimal.Decimal
	}

	// MonthlyLedger aggregates one user's transactions for one month.
	// (UserID, MonthYear) is its identity.
	MonthlyLedger struct {
		UserID       string
		MonthYear    string
		MonthNumber  string
		Income       Table
		Expense      Table
		Calculations Calculations
		// Version is the store's compare-and-swap token; 0 until first persisted.
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Identity is the key a ledger is stored under.
	Identity struct {
		UserID      string
		MonthYear   string
		MonthNumber string
	}

	// Entry is a transaction addressed to one of the ledger tables.
	Entry struct {
		Type        TableName
		Transaction Transaction
	}
)

// ParseTableName accepts "income"/"expense" in any case.
func ParseTableName(s string) (TableName, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Income):
		return Income, nil
	case string(Expense):
		return Expense, nil
	}
	return "", NewValidationError("type", "must be income or expense")
}

func (t TableName) IsValid() bool {
	return t == Income || t == Expense
}

func (t TableName) String() string {
	return string(t)
}

// ParseDate parses an ISO YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, NewValidationError("date", "is required")
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthYear returns the YYYY-MM key of the month the date falls in.
func (d Date) MonthYear() string {
	return MonthKey{Year: d.Year(), Month: int(d.Month())}.MonthYear()
}

// Validate checks the fields the aggregator relies on.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return NewValidationError("date", "is required")
	}
	if strings.TrimSpace(t.Category) == "" {
		return NewValidationError("category", "is required")
	}
	if utf8.RuneCountInString(t.Category) > MaxCategoryLength {
		return NewValidationError("category", "is too long")
	}
	if t.Amount.IsNegative() {
		return NewValidationError("amount", "must not be negative")
	}
	return nil
}

func (e Entry) Validate() error {
	if !e.Type.IsValid() {
		return NewValidationError("type", "must be income or expense")
	}
	return e.Transaction.Validate()
}

// NewLedger returns an empty ledger for id.
func NewLedger(id Identity) MonthlyLedger {
	return MonthlyLedger{
		UserID:      id.UserID,
		MonthYear:   id.MonthYear,
		MonthNumber: id.MonthNumber,
		Income:      Table{Name: Income, Columns: append([]string(nil), DefaultColumns...)},
		Expense:     Table{Name: Expense, Columns: append([]string(nil), DefaultColumns...)},
		Calculations: Calculations{
			TotalIncome:   decimal.Zero,
			TotalExpense:  decimal.Zero,
			CurrentAmount: decimal.Zero,
		},
	}
}

// Identity returns the key the ledger is stored under.
func (l MonthlyLedger) Identity() Identity {
	return Identity{UserID: l.UserID, MonthYear: l.MonthYear, MonthNumber: l.MonthNumber}
}

// Table returns a pointer to the named table, or nil for an unknown name.
func (l *MonthlyLedger) Table(name TableName) *Table {
	switch name {
	case Income:
		return &l.Income
	case Expense:
		return &l.Expense
	}
	return nil
}

// Tables returns both tables in display order.
func (l MonthlyLedger) Tables() []Table {
	return []Table{l.Income, l.Expense}
}

// Clone returns a deep copy that shares no slices with l.
func (l MonthlyLedger) Clone() MonthlyLedger {
	out := l
	out.Income = l.Income.clone()
	out.Expense = l.Expense.clone()
	return out
}

func (t Table) clone() Table {
	out := Table{Name: t.Name}
	if t.Columns != nil {
		out.Columns = append([]string(nil), t.Columns...)
	}
	if t.Rows != nil {
		out.Rows = append([]Transaction(nil), t.Rows...)
	}
	return out
}

// Sum adds the amounts of every row.
func (t Table) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, row := range t.Rows {
		total = total.Add(row.Amount)
	}
	return total
}

// Key is the canonical store key for a ledger.
func (id Identity) Key() string {
	return id.UserID + "|" + id.MonthYear
}

// Validate checks the identity is complete and canonical.
func (id Identity) Validate() error {
	if err := ValidateUserID(id.UserID); err != nil {
		return err
	}
	mk, err := ParseMonthYear(id.MonthYear)
	if err != nil {
		return err
	}
	if mk.MonthNumber() != id.MonthNumber {
		return NewValidationError("monthNumber", "must match the month of monthYear")
	}
	return nil
}

// ValidateUserID rejects a missing or over-long user id. User ids are keys,
// so they are compared exactly and never shortened.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if utf8.RuneCountInString(userID) > MaxUserIDLength {
		return NewValidationError("userId", "is too long")
	}
	return nil
}
