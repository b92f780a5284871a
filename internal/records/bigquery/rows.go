package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-review/internal/domain"
)

// FileRow represents a file record in BigQuery.
type FileRow struct {
	FileID       string `bigquery:"file_id"`
	Filename     string `bigquery:"filename"`
	OriginalName string `bigquery:"original_name"`
	MimeType     string `bigquery:"mime_type"`
	SizeBytes    int64  `bigquery:"size_bytes"`

	Status           string              `bigquery:"status"`
	ErrorMessage     bigquery.NullString `bigquery:"error_message"`
	TransactionsJSON bigquery.NullString `bigquery:"transactions_json"`

	Attempt             int64                  `bigquery:"attempt"`
	ProcessingStartedTS bigquery.NullTimestamp `bigquery:"processing_started_ts"`

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

// toDomain converts a row into a domain.File.
func (r *FileRow) toDomain() (*domain.File, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", r.FileID, err)
	}

	f := &domain.File{
		ID:           r.FileID,
		Filename:     r.Filename,
		OriginalName: r.OriginalName,
		MimeType:     r.MimeType,
		Size:         r.SizeBytes,
		Status:       status,
		Error:        r.ErrorMessage.StringVal,
		Attempt:      r.Attempt,
		CreatedAt:    r.CreatedTS,
		UpdatedAt:    r.UpdatedTS,
	}
	if r.ProcessingStartedTS.Valid {
		t := r.ProcessingStartedTS.Timestamp
		f.ProcessingStartedAt = &t
	}
	if r.TransactionsJSON.Valid && r.TransactionsJSON.StringVal != "" {
		if err := json.Unmarshal([]byte(r.TransactionsJSON.StringVal), &f.Transactions); err != nil {
			return nil, fmt.Errorf("file %s: decoding transactions: %w", r.FileID, err)
		}
	}
	return f, nil
}

// encodeTransactions serializes transactions in their wire form. An empty
// list is stored as "[]" so COMPLETED files keep a present, empty list.
func encodeTransactions(txs []domain.Transaction) (string, error) {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	b, err := json.Marshal(txs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
