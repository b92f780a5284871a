package checks

import (
	"fmt"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	roundedWarnAt  = 3
	roundedErrorAt = 10
)

var ten = decimal.NewFromInt(10)

// RoundedOutflows flags a pattern of debits in whole tens. The reported
// severity grows with the number of matches.
type RoundedOutflows struct{ base }

// NewRoundedOutflows returns the rounded number outflows check.
func NewRoundedOutflows() *RoundedOutflows {
	return &RoundedOutflows{base{id: "rounded-outflows", name: "Rounded Number Outflows", severity: SeverityWarning}}
}

func isRounded(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(ten) && amount.Mod(ten).IsZero()
}

func (c *RoundedOutflows) Run(txs []domain.Transaction) Result {
	var details []string
	for _, tx := range txs {
		if tx.Type.IsDebit() && isRounded(tx.Amount) {
			details = append(details, lineItem(tx))
		}
	}

	count := len(details)
	msg := fmt.Sprintf("%d rounded outflow(s) detected", count)
	switch {
	case count < roundedWarnAt:
		return c.pass(SeverityInfo, msg)
	case count < roundedErrorAt:
		return c.fail(SeverityWarning, msg, details)
	default:
		return c.fail(SeverityError, msg, details)
	}
}
