package core

// Merge folds incoming into existing and returns the updated ledger.
//
// A nil existing ledger starts a new one for id. The transaction is appended
// to the table named by incoming.Type; the other table's rows are left as
// they were. Calculations are recomputed from both tables in full.
//
// existing is never modified: the result shares no slices with it, so a
// caller whose persist failed can merge again from the same read.
func Merge(existing *MonthlyLedger, incoming Entry, id Identity) (MonthlyLedger, error) {
	if err := incoming.Validate(); err != nil {
		return MonthlyLedger{}, err
	}

	var out MonthlyLedger
	if existing == nil {
		out = NewLedger(id)
	} else {
		if existing.UserID != id.UserID || existing.MonthYear != id.MonthYear {
			return MonthlyLedger{}, &IdentityMismatchError{Expected: id, Actual: existing.Identity()}
		}
		out = existing.Clone()
		// Repair a ledger that was stored without one of its tables.
		if out.Income.Name == "" {
			out.Income = Table{Name: Income, Columns: append([]string(nil), DefaultColumns...)}
		}
		if out.Expense.Name == "" {
			out.Expense = Table{Name: Expense, Columns: append([]string(nil), DefaultColumns...)}
		}
		out.MonthNumber = id.MonthNumber
	}

	table := out.Table(incoming.Type)
	table.Rows = append(table.Rows, incoming.Transaction)

	out.Calculations = Fold(out)
	return out, nil
}

// Fold recomputes the derived totals of l from its rows.
func Fold(l MonthlyLedger) Calculations {
	income := l.Income.Sum()
	expense := l.Expense.Sum()
	return Calculations{
		TotalIncome:   income,
		TotalExpense:  expense,
		CurrentAmount: income.Sub(expense),
	}
}

// Consistent reports whether the stored calculations equal a fresh fold.
func (l MonthlyLedger) Consistent() bool {
	return l.Calculations.Equal(Fold(l))
}

// Equal compares the three totals numerically.
func (c Calculations) Equal(other Calculations) bool {
	return c.TotalIncome.Equal(other.TotalIncome) &&
		c.TotalExpense.Equal(other.TotalExpense) &&
		c.CurrentAmount.Equal(other.CurrentAmount)
}
