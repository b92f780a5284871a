package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
)

// ParseModelResponse decodes a model reply of the form
// {"transactions": [...]} into transactions, optionally wrapped in a single
// Markdown code fence. Anything else is ErrMalformedOutput; there is no
// partial recovery.
func ParseModelResponse(ctx context.Context, raw string) ([]domain.Transaction, error) {
	clean := cleanModelJSON(raw)

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ParseModelResponse: decode JSON: %v: %w", err, ErrMalformedOutput)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ParseModelResponse: trailing data after JSON value: %w", ErrMalformedOutput)
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ParseModelResponse: top level is %T, want object: %w", parsed, ErrMalformedOutput)
	}

	txs, err := transformModelOutputToTransactions(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("ParseModelResponse: %v: %w", err, ErrMalformedOutput)
	}
	return txs, nil
}

// cleanModelJSON strips one leading ```json or ``` marker and one trailing
// ``` marker.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}

	return strings.TrimSpace(s)
}

// logUnparseable records a reply that failed to decode.
func logUnparseable(ctx context.Context, raw string, err error) {
	log := logger.FromContext(ctx)
	log.Warn().
		Err(err).
		Int("raw_len", len(raw)).
		Str("raw_preview", truncate(raw, maxPreviewLen)).
		Msg("Failed to parse model response")
}
