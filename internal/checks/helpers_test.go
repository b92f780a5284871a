package checks

import (
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
)

func tx(date, description, amount string, typ domain.TransactionType) domain.Transaction {
	return domain.Transaction{
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Type:        typ,
	}
}

func withBalance(t domain.Transaction, balance string) domain.Transaction {
	b := decimal.RequireFromString(balance)
	t.Balance = &b
	return t
}

func withCategory(t domain.Transaction, category string) domain.Transaction {
	t.Category = &category
	return t
}
