package checks

import (
	"testing"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDateSequence_Run(t *testing.T) {
	tests := []struct {
		name        string
		dates       []string
		wantPassed  bool
		wantMessage string
		wantDetails []string
	}{
		{
			name:        "empty",
			wantPassed:  true,
			wantMessage: "Not enough transactions to check sequence",
		},
		{
			name:        "single",
			dates:       []string{"2024-01-01"},
			wantPassed:  true,
			wantMessage: "Not enough transactions to check sequence",
		},
		{
			name:        "ordered",
			dates:       []string{"2024-01-01", "2024-01-02"},
			wantPassed:  true,
			wantMessage: "All transactions are in chronological order",
		},
		{
			name:        "same day is ordered",
			dates:       []string{"2024-01-01", "2024-01-01"},
			wantPassed:  true,
			wantMessage: "All transactions are in chronological order",
		},
		{
			name:        "reversed pair",
			dates:       []string{"2024-01-02", "2024-01-01"},
			wantMessage: "1 date sequence issue(s) detected",
			wantDetails: []string{"Row 2: 01/01/2024 comes after 02/01/2024"},
		},
		{
			name:        "two issues",
			dates:       []string{"2024-03-01", "2024-02-01", "2024-02-15", "2024-01-01"},
			wantMessage: "2 date sequence issue(s) detected",
			wantDetails: []string{
				"Row 2: 01/02/2024 comes after 01/03/2024",
				"Row 4: 01/01/2024 comes after 15/02/2024",
			},
		},
		{
			name:        "unreadable dates are skipped",
			dates:       []string{"2024-01-05", "not a date", "2024-01-01"},
			wantPassed:  true,
			wantMessage: "All transactions are in chronological order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []domain.Transaction
			for _, d := range tt.dates {
				txs = append(txs, tx(d, "ROW", "1", domain.Debit))
			}

			got := NewDateSequence().Run(txs)
			assert.Equal(t, "date-sequence", got.ID)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, SeverityWarning, got.Severity)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantDetails, got.Details)
		})
	}
}
