package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-review/internal/domain"
	"google.golang.org/api/iterator"
)

const fileColumns = `
			file_id,
			filename,
			original_name,
			mime_type,
			size_bytes,
			status,
			error_message,
			transactions_json,
			attempt,
			processing_started_ts,
			created_ts,
			updated_ts`

// runDML runs a DML statement and returns the number of affected rows.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

// InsertFileWithClient inserts a new PENDING file row.
func InsertFileWithClient(ctx context.Context, client *bigquery.Client, t Table, f *domain.File) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			file_id,
			filename,
			original_name,
			mime_type,
			size_bytes,
			status,
			attempt,
			created_ts,
			updated_ts
		)
		VALUES (
			@file_id,
			@filename,
			@original_name,
			@mime_type,
			@size_bytes,
			@status,
			0,
			@created_ts,
			@updated_ts
		)
	`, t.ref()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "file_id", Value: f.ID},
		{Name: "filename", Value: f.Filename},
		{Name: "original_name", Value: f.OriginalName},
		{Name: "mime_type", Value: f.MimeType},
		{Name: "size_bytes", Value: f.Size},
		{Name: "status", Value: domain.StatusPending.String()},
		{Name: "created_ts", Value: f.CreatedAt},
		{Name: "updated_ts", Value: f.UpdatedAt},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertFile: %w", err)
	}
	return nil
}

// GetFileWithClient retrieves one file by ID.
func GetFileWithClient(ctx context.Context, client *bigquery.Client, t Table, fileID string) (*domain.File, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE file_id = @file_id
		LIMIT 1
	`, fileColumns, t.ref()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "file_id", Value: fileID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetFile: reading query: %w", err)
	}

	var row FileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetFile: %s: %w", fileID, domain.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetFile: iterating: %w", err)
	}

	f, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("GetFile: %w", err)
	}
	return f, nil
}

// ListFilesWithClient retrieves files newest first.
func ListFilesWithClient(ctx context.Context, client *bigquery.Client, t Table, filter domain.FileFilter) ([]*domain.File, error) {
	where := ""
	var params []bigquery.QueryParameter
	if filter.Status != nil {
		where = "WHERE status = @status"
		params = append(params, bigquery.QueryParameter{Name: "status", Value: filter.Status.String()})
	}
	limit := ""
	if filter.Limit > 0 {
		limit = fmt.Sprintf("LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		// BigQuery requires LIMIT before OFFSET.
		limit = fmt.Sprintf("LIMIT 9223372036854775807 OFFSET %d", filter.Offset)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY created_ts DESC, file_id
		%s
	`, fileColumns, t.ref(), where, limit))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: reading query: %w", err)
	}

	files := []*domain.File{}
	for {
		var row FileRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListFiles: iterating: %w", err)
		}
		f, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListFiles: %w", err)
		}
		files = append(files, f)
	}
	return files, nil
}

// MarkSkippedWithClient sets status=SKIPPED and error_message.
func MarkSkippedWithClient(ctx context.Context, client *bigquery.Client, t Table, fileID, reason string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = @error_message,
		    updated_ts = @updated_ts
		WHERE file_id = @file_id
	`, t.ref()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusSkipped.String()},
		{Name: "error_message", Value: reason},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "file_id", Value: fileID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("MarkSkipped: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkSkipped: %s: %w", fileID, domain.ErrFileNotFound)
	}
	return nil
}

// MarkProcessingWithClient moves the file to PROCESSING with a compare-and-set
// on the current attempt, so two workers cannot claim the same attempt.
func MarkProcessingWithClient(ctx context.Context, client *bigquery.Client, t Table, fileID string, startedAt time.Time) (int64, error) {
	current, err := GetFileWithClient(ctx, client, t, fileID)
	if err != nil {
		return 0, fmt.Errorf("MarkProcessing: %w", err)
	}
	next := current.Attempt + 1

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = NULL,
		    attempt = @next_attempt,
		    processing_started_ts = @started_ts,
		    updated_ts = @started_ts
		WHERE file_id = @file_id AND attempt = @attempt
	`, t.ref()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusProcessing.String()},
		{Name: "next_attempt", Value: next},
		{Name: "started_ts", Value: startedAt},
		{Name: "file_id", Value: fileID},
		{Name: "attempt", Value: current.Attempt},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("MarkProcessing: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("MarkProcessing: %s attempt %d already claimed: %w", fileID, next, domain.ErrStaleAttempt)
	}
	return next, nil
}

// MarkFailedWithClient sets status=FAILED and error_message for the given attempt.
func MarkFailedWithClient(ctx context.Context, client *bigquery.Client, t Table, fileID string, attempt int64, reason string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = @error_message,
		    updated_ts = @updated_ts
		WHERE file_id = @file_id AND attempt = @attempt
	`, t.ref()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusFailed.String()},
		{Name: "error_message", Value: reason},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "file_id", Value: fileID},
		{Name: "attempt", Value: attempt},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkFailed: %s attempt %d: %w", fileID, attempt, domain.ErrStaleAttempt)
	}
	return nil
}

// MarkCompletedWithClient stores the transactions and sets status=COMPLETED
// for the given attempt.
func MarkCompletedWithClient(ctx context.Context, client *bigquery.Client, t Table, fileID string, attempt int64, txs []domain.Transaction) error {
	payload, err := encodeTransactions(txs)
	if err != nil {
		return fmt.Errorf("MarkCompleted: encoding transactions: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = NULL,
		    transactions_json = @transactions_json,
		    updated_ts = @updated_ts
		WHERE file_id = @file_id AND attempt = @attempt
	`, t.ref()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusCompleted.String()},
		{Name: "transactions_json", Value: payload},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "file_id", Value: fileID},
		{Name: "attempt", Value: attempt},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkCompleted: %s attempt %d: %w", fileID, attempt, domain.ErrStaleAttempt)
	}
	return nil
}
