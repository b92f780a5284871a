package domain

import (
	"errors"
	"time"
)

var (
	// ErrFileNotFound is returned by record stores for unknown file IDs.
	ErrFileNotFound = errors.New("file not found")

	// ErrStaleAttempt is returned when a terminal write carries an attempt
	// number that a newer extraction has superseded.
	ErrStaleAttempt = errors.New("stale extraction attempt")
)

// File is an uploaded document and its extraction state.
type File struct {
	ID string `json:"id"`

	// Filename is the opaque key the file store knows the bytes by.
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`

	Status       Status        `json:"status"`
	Error        string        `json:"error,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`

	// Attempt increases by one every time an extraction enters PROCESSING.
	Attempt             int64      `json:"attempt"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (f *File) Clone() *File {
	c := *f
	c.Transactions = CloneTransactions(f.Transactions)
	if f.ProcessingStartedAt != nil {
		t := *f.ProcessingStartedAt
		c.ProcessingStartedAt = &t
	}
	return &c
}

// VisibleTransactions returns the stored transactions only when the file is
// COMPLETED. Results from an earlier attempt are kept in storage during a
// retry but are not exposed.
func (f *File) VisibleTransactions() []Transaction {
	if f.Status != StatusCompleted {
		return nil
	}
	return f.Transactions
}

// FileFilter narrows ListFiles results.
type FileFilter struct {
	Status *Status
	Limit  int
	Offset int
}
