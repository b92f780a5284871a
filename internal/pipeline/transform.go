package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
	"github.com/shopspring/decimal"
)

// transformModelOutputToTransactions converts decoded model output into
// transactions. date, description, amount and type must be well formed;
// a malformed balance or category is dropped rather than failing the batch.
func transformModelOutputToTransactions(ctx context.Context, rawOutput map[string]interface{}) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)

	txAny, ok := rawOutput["transactions"]
	if !ok {
		return nil, fmt.Errorf("missing 'transactions' key in model output")
	}

	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("'transactions' is %T, want array", txAny)
	}

	result := make([]domain.Transaction, 0, len(txSlice))

	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want object", i, item)
		}

		date, err := getStringField(obj, "date", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		desc, err := getStringField(obj, "description", false)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		typ, err := getStringField(obj, "type", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		amount, err := getDecimalField(obj, "amount")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		t := domain.Transaction{
			Date:        strings.TrimSpace(date),
			Description: desc,
			Amount:      amount,
			Type:        domain.TransactionType(strings.ToUpper(strings.TrimSpace(typ))),
		}

		if balance, err := getOptionalDecimalField(obj, "balance"); err != nil {
			log.Warn().Err(err).Int("row", i+1).Msg("Dropping malformed balance")
		} else {
			t.Balance = balance
		}

		if category, err := getOptionalStringField(obj, "category"); err != nil {
			log.Warn().Err(err).Int("row", i+1).Msg("Dropping malformed category")
		} else {
			t.Category = category
		}

		result = append(result, t)
	}

	return result, nil
}

// getStringField reads a string field that must be present. With nonEmpty
// set, blank values are rejected as well.
func getStringField(m map[string]interface{}, key string, nonEmpty bool) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case string:
		if nonEmpty && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// toDecimal accepts a JSON number or a numeric string.
func toDecimal(key string, v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q is not numeric: %q", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	return toDecimal(key, v)
}

func getOptionalDecimalField(m map[string]interface{}, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	d, err := toDecimal(key, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
