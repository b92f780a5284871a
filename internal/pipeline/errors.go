package pipeline

import "errors"

// Failure classes. Coordinator errors wrap exactly one of these.
var (
	// ErrUnsupportedInput means the file's MIME type cannot be sent to the
	// model. The file is SKIPPED and retrying will not help.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrTransport means the model call failed. Retryable.
	ErrTransport = errors.New("document model call failed")

	// ErrMalformedOutput means the model replied with something that is not
	// a transaction list. Retryable.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrFileRead means the document bytes could not be loaded. Retryable.
	ErrFileRead = errors.New("file read failed")

	// ErrPersistence means a record store write failed; the persisted state
	// is unknown. Safe to retry.
	ErrPersistence = errors.New("record store write failed")

	// ErrExtractionInProgress means another extraction of the same file is
	// still running.
	ErrExtractionInProgress = errors.New("extraction already in progress")
)

// Retryable reports whether a later Extract call may succeed where this one
// failed.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnsupportedInput)
}
