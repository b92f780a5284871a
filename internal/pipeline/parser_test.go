package pipeline

import (
	"context"
	"testing"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReply = `{
  "transactions": [
    {"date": "2024-01-15", "description": "TESCO STORES", "amount": 45.67, "type": "DEBIT", "balance": 1234.56, "category": "Groceries"},
    {"date": "2024-01-14", "description": "SALARY ACME INC", "amount": 2500.00, "type": "CREDIT", "balance": 1280.23, "category": "Salary"}
  ]
}`

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json {\"a\":1} ```\n ", `{"a":1}`},
		{"leading fence only", "```json\n{\"a\":1}", `{"a":1}`},
		{"trailing fence only", "{\"a\":1}\n```", `{"a":1}`},
		{"prose is kept", "Here you go: {\"a\":1}", `Here you go: {"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestParseModelResponse_FencedMatchesUnfenced(t *testing.T) {
	ctx := context.Background()

	plain, err := ParseModelResponse(ctx, sampleReply)
	require.NoError(t, err)
	fenced, err := ParseModelResponse(ctx, "```json\n"+sampleReply+"\n```")
	require.NoError(t, err)
	bare, err := ParseModelResponse(ctx, "```\n"+sampleReply+"\n```")
	require.NoError(t, err)

	assert.Equal(t, plain, fenced)
	assert.Equal(t, plain, bare)

	require.Len(t, plain, 2)
	first := plain[0]
	assert.Equal(t, "2024-01-15", first.Date)
	assert.Equal(t, "TESCO STORES", first.Description)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("45.67")))
	assert.Equal(t, domain.Debit, first.Type)
	require.NotNil(t, first.Balance)
	assert.True(t, first.Balance.Equal(decimal.RequireFromString("1234.56")))
	require.NotNil(t, first.Category)
	assert.Equal(t, "Groceries", *first.Category)
	assert.Equal(t, domain.Credit, plain[1].Type)
}

func TestParseModelResponse_EmptyList(t *testing.T) {
	txs, err := ParseModelResponse(context.Background(), `{"transactions": []}`)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestParseModelResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "I could not read this document."},
		{"prose around json", `Sure! {"transactions": []}`},
		{"top level array", `[{"date":"2024-01-01","description":"x","amount":1,"type":"DEBIT"}]`},
		{"missing key", `{"txns": []}`},
		{"null transactions", `{"transactions": null}`},
		{"transactions not array", `{"transactions": {}}`},
		{"element not object", `{"transactions": ["x"]}`},
		{"missing date", `{"transactions": [{"description":"x","amount":1,"type":"DEBIT"}]}`},
		{"empty date", `{"transactions": [{"date":" ","description":"x","amount":1,"type":"DEBIT"}]}`},
		{"missing description", `{"transactions": [{"date":"2024-01-01","amount":1,"type":"DEBIT"}]}`},
		{"numeric description", `{"transactions": [{"date":"2024-01-01","description":5,"amount":1,"type":"DEBIT"}]}`},
		{"missing amount", `{"transactions": [{"date":"2024-01-01","description":"x","type":"DEBIT"}]}`},
		{"null amount", `{"transactions": [{"date":"2024-01-01","description":"x","amount":null,"type":"DEBIT"}]}`},
		{"word amount", `{"transactions": [{"date":"2024-01-01","description":"x","amount":"ten","type":"DEBIT"}]}`},
		{"missing type", `{"transactions": [{"date":"2024-01-01","description":"x","amount":1}]}`},
		{"trailing garbage", `{"transactions": []} {"transactions": []}`},
		{"truncated", `{"transactions": [{"date":"2024-01-01"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := ParseModelResponse(context.Background(), tt.raw)
			assert.ErrorIs(t, err, ErrMalformedOutput)
			assert.Nil(t, txs)
		})
	}
}

func TestParseModelResponse_Lenient(t *testing.T) {
	raw := `{"transactions": [
		{"date":"2024-01-01","description":"A","amount":"12.50","type":"debit","balance":"oops","category":7},
		{"date":"2024-01-02","description":"","amount":-3,"type":"REFUND","balance":null,"category":"  "},
		{"date":"01/03/2024","description":"C","amount":1e2,"type":"CREDIT","balance":"99.10","extra":true}
	]}`

	txs, err := ParseModelResponse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, domain.Debit, txs[0].Type)
	assert.Nil(t, txs[0].Balance, "malformed balance is dropped")
	assert.Nil(t, txs[0].Category, "malformed category is dropped")

	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(-3)), "negative amounts pass through")
	assert.Equal(t, domain.TransactionType("REFUND"), txs[1].Type)
	assert.Nil(t, txs[1].Balance)
	assert.Nil(t, txs[1].Category)

	assert.Equal(t, "01/03/2024", txs[2].Date, "dates are not validated")
	assert.True(t, txs[2].Amount.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, txs[2].Balance)
	assert.True(t, txs[2].Balance.Equal(decimal.RequireFromString("99.1")))
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		mime      string
		wantOK    bool
		wantKind  BlockKind
		wantMedia string
	}{
		{"application/pdf", true, BlockDocument, "application/pdf"},
		{"image/png", true, BlockImage, "image/png"},
		{"image/jpeg", true, BlockImage, "image/jpeg"},
		{"image/jpg", true, BlockImage, "image/jpeg"},
		{"image/gif", true, BlockImage, "image/gif"},
		{"image/webp", true, BlockImage, "image/webp"},
		{"image/tiff", false, 0, ""},
		{"text/csv", false, 0, ""},
		{"APPLICATION/PDF", false, 0, ""},
		{"", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			req, ok := BuildRequest(tt.mime, []byte("hello"))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantOK, SupportedMIME(tt.mime))
			if !ok {
				return
			}
			assert.Equal(t, tt.wantKind, req.Content.Kind)
			assert.Equal(t, tt.wantMedia, req.Content.MediaType)
			assert.Equal(t, "aGVsbG8=", req.Content.Data)
			assert.Equal(t, ExtractionPrompt, req.Instruction)

			raw, err := req.Content.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), raw)
		})
	}
}
