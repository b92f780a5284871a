package checks

import (
	"sync"

	"github.com/dvloznov/statement-review/internal/domain"
)

// Runner evaluates a fixed, ordered set of checks.
type Runner struct {
	checks []Check
}

// NewRunner creates a runner over the given checks, evaluated in order.
func NewRunner(checks ...Check) *Runner {
	return &Runner{checks: checks}
}

// DefaultRunner returns the standard battery in its reporting order.
func DefaultRunner() *Runner {
	return NewRunner(
		NewGambling(),
		NewDateSequence(),
		NewRoundedOutflows(),
		NewBalanceReconciliation(),
		NewCashOutflows(),
	)
}

// Checks returns the registered checks in order.
func (r *Runner) Checks() []Check {
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// RunAll returns one result per registered check, in registration order.
func (r *Runner) RunAll(txs []domain.Transaction) []Result {
	results := make([]Result, len(r.checks))
	for i, c := range r.checks {
		results[i] = c.Run(txs)
	}
	return results
}

// RunAllConcurrent is RunAll with each check on its own goroutine. Output
// order and content match RunAll.
func (r *Runner) RunAllConcurrent(txs []domain.Transaction) []Result {
	results := make([]Result, len(r.checks))
	var wg sync.WaitGroup
	for i, c := range r.checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			results[i] = c.Run(txs)
		}(i, c)
	}
	wg.Wait()
	return results
}

// RunOne runs the check with the given ID. The bool is false when no such
// check is registered.
func (r *Runner) RunOne(checkID string, txs []domain.Transaction) (Result, bool) {
	for _, c := range r.checks {
		if c.ID() == checkID {
			return c.Run(txs), true
		}
	}
	return Result{}, false
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// HasFailed reports whether any result did not pass.
func HasFailed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// BySeverity returns the results reported at the given severity.
func BySeverity(results []Result, sev Severity) []Result {
	var out []Result
	for _, r := range results {
		if r.Severity == sev {
			out = append(out, r)
		}
	}
	return out
}
