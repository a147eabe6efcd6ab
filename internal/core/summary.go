package core

import "github.com/shopspring/decimal"

// Summary is the dashboard aggregate over one user's transactions.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
}

// Aggregate sums income and expense amounts. Expense amounts are negative,
// so the balance is their plain sum. The input slice is not modified.
func Aggregate(txs []Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case KindIncome:
			income = income.Add(t.Amount)
		case KindExpense:
			expense = expense.Add(t.Amount)
		}
	}
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Add(expense),
	}
}
