package pipeline

import (
	"time"
	"unicode/utf8"
)

const (
	// ParseFailureMessage is stored when a model reply cannot be decoded.
	ParseFailureMessage = "Failed to parse transaction data from document"

	// DefaultStaleAfter is how long a PROCESSING record is trusted before a
	// new extraction may take it over.
	DefaultStaleAfter = 10 * time.Minute

	// maxErrorLen caps stored error messages.
	maxErrorLen = 2000

	// maxPreviewLen caps the raw reply logged on parse failures.
	maxPreviewLen = 500
)

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
