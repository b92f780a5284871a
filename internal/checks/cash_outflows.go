package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
)

var cashKeywords = []string{"cash", "atm", "cashpoint", "withdrawal", "cash withdrawal", "link"}

// maxCashPerQuarter is the most withdrawals a quarter may hold before it is flagged.
const maxCashPerQuarter = 3

// unknownQuarter groups withdrawals whose date could not be read.
const unknownQuarter = "unknown"

// CashOutflows flags quarters with frequent cash withdrawals.
type CashOutflows struct{ base }

// NewCashOutflows returns the cash withdrawals check.
func NewCashOutflows() *CashOutflows {
	return &CashOutflows{base{id: "cash-outflows", name: "Cash Withdrawals", severity: SeverityWarning}}
}

func isCashOutflow(tx domain.Transaction) bool {
	if !tx.Type.IsDebit() {
		return false
	}
	category := strings.ToLower(tx.CategoryOrEmpty())
	return containsAny(strings.ToLower(tx.Description), cashKeywords) || category == "cash" || category == "atm"
}

func quarterOf(tx domain.Transaction) string {
	d, ok := tx.CalendarDate()
	if !ok {
		return unknownQuarter
	}
	return fmt.Sprintf("%04d-Q%d", d.Year, (int(d.Month)-1)/3+1)
}

type quarterTotal struct {
	count int
	total decimal.Decimal
}

func (c *CashOutflows) Run(txs []domain.Transaction) Result {
	byQuarter := make(map[string]*quarterTotal)
	matched := 0
	for _, tx := range txs {
		if !isCashOutflow(tx) {
			continue
		}
		matched++
		q := quarterOf(tx)
		qt, ok := byQuarter[q]
		if !ok {
			qt = &quarterTotal{}
			byQuarter[q] = qt
		}
		qt.count++
		qt.total = qt.total.Add(tx.Amount)
	}

	if matched == 0 {
		return c.pass(SeverityInfo, "No cash withdrawals detected")
	}

	var flagged []string
	for q, qt := range byQuarter {
		if qt.count > maxCashPerQuarter {
			flagged = append(flagged, q)
		}
	}
	if len(flagged) == 0 {
		return c.pass(SeverityInfo, fmt.Sprintf("%d cash withdrawal(s) detected, within normal limits per quarter", matched))
	}

	sort.Strings(flagged)
	details := make([]string, 0, len(flagged))
	for _, q := range flagged {
		qt := byQuarter[q]
		details = append(details, fmt.Sprintf("%s: %d withdrawals totalling %s", q, qt.count, money(qt.total)))
	}
	return c.fail(SeverityWarning, fmt.Sprintf("%d quarter(s) with excessive cash withdrawals (>%d)", len(flagged), maxCashPerQuarter), details)
}
