// Package checks evaluates extracted transactions against a fixed set of
// risk rules. Checks are pure: they never fail, never mutate their input and
// return the same result for the same transactions.
package checks

import (
	"fmt"

	"github.com/dvloznov/statement-review/internal/domain"
)

// Severity grades a check result.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

// ParseSeverity converts "info", "warning" or "error" into a Severity.
func ParseSeverity(label string) (Severity, error) {
	switch label {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("ParseSeverity: unknown severity %q", label)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s > SeverityError {
		return nil, fmt.Errorf("MarshalText: invalid severity %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Result is the verdict of one check over one transaction list.
type Result struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  []string `json:"details,omitempty"`
}

// Check is a single rule. Severity is the declared severity; the severity on
// a Result may differ.
type Check interface {
	ID() string
	Name() string
	Severity() Severity
	Run(txs []domain.Transaction) Result
}

// base carries the identity shared by every check.
type base struct {
	id       string
	name     string
	severity Severity
}

func (b base) ID() string         { return b.id }
func (b base) Name() string       { return b.name }
func (b base) Severity() Severity { return b.severity }

func (b base) pass(sev Severity, msg string) Result {
	return Result{ID: b.id, Name: b.name, Passed: true, Severity: sev, Message: msg}
}

func (b base) fail(sev Severity, msg string, details []string) Result {
	return Result{ID: b.id, Name: b.name, Passed: false, Severity: sev, Message: msg, Details: details}
}
