package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-review/internal/checks"
	"github.com/dvloznov/statement-review/internal/domain"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTransactions(w io.Writer, txs []domain.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tTYPE\tAMOUNT\tBALANCE\tCATEGORY")
	for _, tx := range txs {
		balance := ""
		if tx.Balance != nil {
			balance = tx.Balance.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date, tx.Description, tx.Type, tx.Amount.StringFixed(2), balance, tx.CategoryOrEmpty())
	}
	tw.Flush()
}

func printResults(w io.Writer, results []checks.Result) {
	for _, r := range results {
		verdict := "PASS"
		if !r.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %-7s %s: %s\n", verdict, r.Severity, r.Name, r.Message)
		for _, d := range r.Details {
			fmt.Fprintf(w, "         - %s\n", d)
		}
	}
}

func printFile(w io.Writer, f *domain.File) {
	fmt.Fprintf(w, "File:     %s\n", f.ID)
	fmt.Fprintf(w, "Name:     %s\n", f.OriginalName)
	fmt.Fprintf(w, "Type:     %s\n", f.MimeType)
	fmt.Fprintf(w, "Status:   %s\n", f.Status)
	fmt.Fprintf(w, "Attempt:  %d\n", f.Attempt)
	if f.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", strings.TrimSpace(f.Error))
	}
}

// errorSeverityFailure reports whether any failed check reported error severity.
func errorSeverityFailure(results []checks.Result) bool {
	return len(checks.BySeverity(checks.Failed(results), checks.SeverityError)) > 0
}
