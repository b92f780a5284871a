package checks

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
)

var statementRowKeywords = []string{
	"opening balance", "closing balance", "balance brought forward",
	"balance carried forward", "brought forward", "carried forward", "b/f", "c/f",
}

// balanceTolerance is one penny.
var balanceTolerance = decimal.RequireFromString("0.01")

// BalanceReconciliation verifies each running balance against the previous
// balance and the row's own amount and direction. Rows are compared in the
// order they were extracted.
type BalanceReconciliation struct{ base }

// NewBalanceReconciliation returns the balance reconciliation check.
func NewBalanceReconciliation() *BalanceReconciliation {
	return &BalanceReconciliation{base{id: "balance-reconciliation", name: "Balance Reconciliation", severity: SeverityError}}
}

func isStatementRow(tx domain.Transaction) bool {
	return containsAny(strings.ToLower(tx.Description), statementRowKeywords)
}

// expectedBalance applies tx to prev. Types other than CREDIT are treated as
// outflows.
func expectedBalance(prev decimal.Decimal, tx domain.Transaction) decimal.Decimal {
	if tx.Type.IsCredit() {
		return prev.Add(tx.Amount)
	}
	return prev.Sub(tx.Amount)
}

func (c *BalanceReconciliation) Run(txs []domain.Transaction) Result {
	withBalance := 0
	for _, tx := range txs {
		if tx.HasBalance() {
			withBalance++
		}
	}
	if withBalance < 2 {
		return c.pass(SeverityInfo, "Not enough balance data to verify reconciliation")
	}

	var details []string
	for i := 1; i < len(txs); i++ {
		cur, prev := txs[i], txs[i-1]
		if !cur.HasBalance() || !prev.HasBalance() {
			continue
		}
		if cur.Amount.IsZero() || isStatementRow(cur) {
			continue
		}
		// A statement row resets the running balance.
		if isStatementRow(prev) {
			continue
		}

		expected := expectedBalance(*prev.Balance, cur)
		diff := cur.Balance.Sub(expected).Abs()
		if diff.GreaterThan(balanceTolerance) {
			details = append(details, fmt.Sprintf("Row %d: Expected %s but found %s (difference: %s)",
				i+1, money(expected), money(*cur.Balance), money(diff)))
		}
	}

	if len(details) == 0 {
		return c.pass(SeverityInfo, "All balances reconcile correctly.")
	}
	return c.fail(SeverityError, fmt.Sprintf("%d balance discrepancy(ies) found", len(details)), details)
}
