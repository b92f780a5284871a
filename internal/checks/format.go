package checks

import (
	"strings"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
)

// displayDateLayout renders dates the way UK statements print them.
const displayDateLayout = "02/01/2006"

func displayDate(tx domain.Transaction) string {
	d, ok := tx.CalendarDate()
	if !ok {
		return tx.Date
	}
	return d.In(time.UTC).Format(displayDateLayout)
}

func money(d decimal.Decimal) string {
	return "£" + d.StringFixed(2)
}

// lineItem is the "date: description - £amount" detail used by several checks.
func lineItem(tx domain.Transaction) string {
	return displayDate(tx) + ": " + tx.Description + " - " + money(tx.Amount)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
