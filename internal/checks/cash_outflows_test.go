package checks

import (
	"testing"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCashOutflows_Run(t *testing.T) {
	atm := func(date, amount string) domain.Transaction {
		return tx(date, "ATM WITHDRAWAL HIGH ST", amount, domain.Debit)
	}

	tests := []struct {
		name         string
		txs          []domain.Transaction
		wantPassed   bool
		wantSeverity Severity
		wantMessage  string
		wantDetails  []string
	}{
		{
			name:         "none",
			txs:          []domain.Transaction{tx("2024-01-01", "TESCO", "10", domain.Debit)},
			wantPassed:   true,
			wantSeverity: SeverityInfo,
			wantMessage:  "No cash withdrawals detected",
		},
		{
			name: "four in one quarter",
			txs: []domain.Transaction{
				atm("2024-01-05", "20"), atm("2024-02-10", "30"), atm("2024-03-01", "40"), atm("2024-03-31", "10.50"),
			},
			wantSeverity: SeverityWarning,
			wantMessage:  "1 quarter(s) with excessive cash withdrawals (>3)",
			wantDetails:  []string{"2024-Q1: 4 withdrawals totalling £100.50"},
		},
		{
			name: "four spread across quarters",
			txs: []domain.Transaction{
				atm("2024-01-05", "20"), atm("2024-04-10", "30"), atm("2024-07-01", "40"), atm("2024-10-31", "10"),
			},
			wantPassed:   true,
			wantSeverity: SeverityInfo,
			wantMessage:  "4 cash withdrawal(s) detected, within normal limits per quarter",
		},
		{
			name: "credits and category matches",
			txs: []domain.Transaction{
				tx("2024-04-01", "CASH DEPOSIT", "100", domain.Credit),
				withCategory(tx("2024-04-02", "POST OFFICE", "20", domain.Debit), "ATM"),
				withCategory(tx("2024-04-03", "NOTES", "20", domain.Debit), "Cash"),
				tx("2024-04-04", "LINK 1234", "20", domain.Debit),
				tx("2024-05-04", "Cashpoint", "20", domain.Debit),
			},
			wantSeverity: SeverityWarning,
			wantMessage:  "1 quarter(s) with excessive cash withdrawals (>3)",
			wantDetails:  []string{"2024-Q2: 4 withdrawals totalling £80.00"},
		},
		{
			name: "flagged quarters sorted",
			txs: append(
				[]domain.Transaction{atm("2024-11-01", "10"), atm("2024-11-02", "10"), atm("2024-11-03", "10"), atm("2024-11-04", "10")},
				atm("2023-02-01", "5"), atm("2023-02-02", "5"), atm("2023-02-03", "5"), atm("2023-02-04", "5"),
			),
			wantSeverity: SeverityWarning,
			wantMessage:  "2 quarter(s) with excessive cash withdrawals (>3)",
			wantDetails: []string{
				"2023-Q1: 4 withdrawals totalling £20.00",
				"2024-Q4: 4 withdrawals totalling £40.00",
			},
		},
		{
			name: "unreadable dates share a bucket",
			txs: []domain.Transaction{
				atm("??", "10"), atm("", "10"), atm("n/a", "10"), atm("31/01/2024", "10"),
			},
			wantSeverity: SeverityWarning,
			wantMessage:  "1 quarter(s) with excessive cash withdrawals (>3)",
			wantDetails:  []string{"unknown: 4 withdrawals totalling £40.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCashOutflows().Run(tt.txs)
			assert.Equal(t, "cash-outflows", got.ID)
			assert.Equal(t, "Cash Withdrawals", got.Name)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, tt.wantSeverity, got.Severity)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantDetails, got.Details)
		})
	}
}
