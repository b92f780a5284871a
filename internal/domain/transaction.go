package domain

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money flow. Values other than CREDIT
// and DEBIT can arrive from model output; they are kept verbatim.
type TransactionType string

const (
	// Credit increases the account balance.
	Credit TransactionType = "CREDIT"
	// Debit decreases the account balance.
	Debit TransactionType = "DEBIT"
)

// IsCredit reports whether the type is exactly CREDIT.
func (t TransactionType) IsCredit() bool { return t == Credit }

// IsDebit reports whether the type is exactly DEBIT.
func (t TransactionType) IsDebit() bool { return t == Debit }

// Transaction is one statement line as extracted from a document.
// Amount is a magnitude; the sign lives in Type.
type Transaction struct {
	Date        string           `json:"date"` // as extracted, expected YYYY-MM-DD
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        TransactionType  `json:"type"`
	Balance     *decimal.Decimal `json:"balance,omitempty"` // running balance after this line
	Category    *string          `json:"category,omitempty"`
}

// CalendarDate parses Date as an ISO calendar date. A trailing time
// component is tolerated and ignored.
func (t Transaction) CalendarDate() (civil.Date, bool) {
	s := strings.TrimSpace(t.Date)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

// HasBalance reports whether a running balance was extracted.
func (t Transaction) HasBalance() bool { return t.Balance != nil }

// CategoryOrEmpty returns the category or "" when absent.
func (t Transaction) CategoryOrEmpty() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// MarshalJSON writes amounts and balances as JSON numbers.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount  json.Number  `json:"amount"`
		Balance *json.Number `json:"balance,omitempty"`
		*Alias
	}{
		Amount: json.Number(t.Amount.String()),
		Balance: func() *json.Number {
			if t.Balance == nil {
				return nil
			}
			n := json.Number(t.Balance.String())
			return &n
		}(),
		Alias: (*Alias)(&t),
	})
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Balance != nil {
		b := *t.Balance
		c.Balance = &b
	}
	if t.Category != nil {
		s := *t.Category
		c.Category = &s
	}
	return c
}

// CloneTransactions deep-copies a transaction list. A nil list stays nil.
func CloneTransactions(txs []Transaction) []Transaction {
	if txs == nil {
		return nil
	}
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		out[i] = t.Clone()
	}
	return out
}
