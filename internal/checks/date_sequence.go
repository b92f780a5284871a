package checks

import (
	"fmt"

	"github.com/dvloznov/statement-review/internal/domain"
)

// DateSequence flags rows dated earlier than the row before them. Its result
// is reported at warning even when it passes.
type DateSequence struct{ base }

// NewDateSequence returns the chronological order check.
func NewDateSequence() *DateSequence {
	return &DateSequence{base{id: "date-sequence", name: "Date Sequence", severity: SeverityWarning}}
}

func (c *DateSequence) Run(txs []domain.Transaction) Result {
	if len(txs) < 2 {
		return c.pass(SeverityWarning, "Not enough transactions to check sequence")
	}

	var details []string
	for i := 1; i < len(txs); i++ {
		cur, okCur := txs[i].CalendarDate()
		prev, okPrev := txs[i-1].CalendarDate()
		// Rows without a readable date cannot be ordered.
		if !okCur || !okPrev {
			continue
		}
		if cur.Before(prev) {
			details = append(details, fmt.Sprintf("Row %d: %s comes after %s", i+1, displayDate(txs[i]), displayDate(txs[i-1])))
		}
	}

	if len(details) == 0 {
		return c.pass(SeverityWarning, "All transactions are in chronological order")
	}
	return c.fail(SeverityWarning, fmt.Sprintf("%d date sequence issue(s) detected", len(details)), details)
}
