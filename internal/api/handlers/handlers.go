// Package handlers implements the HTTP endpoints of the review API.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/review"
)

// FileRegistry is the record store surface the handlers use.
type FileRegistry interface {
	CreateFile(ctx context.Context, f *domain.File) error
	GetFile(ctx context.Context, fileID string) (*domain.File, error)
	ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error)
}

// Uploader stores uploaded document bytes.
type Uploader interface {
	Write(ctx context.Context, filename, contentType string, r io.Reader) (int64, error)
	Delete(ctx context.Context, filename string) error
}

// Reviewer runs the check battery.
type Reviewer interface {
	Evaluate(ctx context.Context, fileID string) (*review.Report, error)
	EvaluateTransactions(ctx context.Context, txs []domain.Transaction) *review.Report
	Checks() []review.CheckInfo
}

// paging reads limit and offset query parameters. Malformed or negative
// values are ignored.
func paging(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if n, err := strconv.Atoi(offsetStr); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
