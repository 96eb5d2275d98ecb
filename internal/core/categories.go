package core

// Advisory category vocabularies offered to clients. Merge only requires a
// non-empty category, so these lists can change without touching the ledger.
var (
	IncomeCategories  = []string{"Salary", "Freelance", "Investments", "Other"}
	ExpenseCategories = []string{"Rent", "Utilities", "Groceries"}
)

// CategoriesFor returns a copy of the vocabulary for the given table.
func CategoriesFor(t TableName) []string {
	switch t {
	case Income:
		return append([]string(nil), IncomeCategories...)
	case Expense:
		return append([]string(nil), ExpenseCategories...)
	}
	return nil
}
