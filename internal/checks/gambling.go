package checks

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-review/internal/domain"
)

var gamblingKeywords = []string{
	"bet365", "betfair", "paddy power", "paddypower", "william hill", "williamhill",
	"ladbrokes", "coral", "betfred", "skybet", "sky bet", "888", "unibet", "betway",
	"bwin", "pokerstars", "poker stars", "casino", "gambling", "lottery", "lotto",
	"national lottery", "scratch card", "scratchcard", "bookmaker", "bookie",
	"betting", "wager", "slots", "roulette", "blackjack", "sportingbet", "betvictor",
	"tombola", "gala bingo", "mecca bingo", "foxy bingo",
}

// Gambling flags payments to bookmakers, casinos and lotteries.
type Gambling struct{ base }

// NewGambling returns the gambling activity check.
func NewGambling() *Gambling {
	return &Gambling{base{id: "gambling", name: "Gambling Activity", severity: SeverityError}}
}

func isGambling(tx domain.Transaction) bool {
	description := strings.ToLower(tx.Description)
	category := strings.ToLower(tx.CategoryOrEmpty())
	if category == "gambling" {
		return true
	}
	return containsAny(description, gamblingKeywords) || containsAny(category, gamblingKeywords)
}

func (c *Gambling) Run(txs []domain.Transaction) Result {
	var details []string
	for _, tx := range txs {
		if isGambling(tx) {
			details = append(details, lineItem(tx))
		}
	}

	if len(details) == 0 {
		return c.pass(SeverityInfo, "No gambling transactions detected")
	}
	return c.fail(SeverityError, fmt.Sprintf("%d gambling transaction(s) detected", len(details)), details)
}
