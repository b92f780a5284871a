package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/records"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of records.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	files map[string]*domain.File
	now   func() time.Time
}

// NewStore creates a new in-memory record store.
func NewStore() *Store {
	return &Store{
		files: make(map[string]*domain.File),
		now:   time.Now,
	}
}

// CreateFile implements records.Store.
func (s *Store) CreateFile(ctx context.Context, f *domain.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	f.Status = domain.StatusPending

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[f.ID]; exists {
		return fmt.Errorf("CreateFile: file %s already exists", f.ID)
	}
	// Store a copy to avoid external modifications
	s.files[f.ID] = f.Clone()
	return nil
}

// GetFile implements pipeline.RecordStore.
func (s *Store) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.files[fileID]
	if !exists {
		return nil, fmt.Errorf("GetFile: %s: %w", fileID, domain.ErrFileNotFound)
	}
	return f.Clone(), nil
}

// ListFiles implements records.Store.
func (s *Store) ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.File
	for _, f := range s.files {
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		result = append(result, f.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*domain.File{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// update applies fn to the stored file under the write lock.
func (s *Store) update(fileID string, fn func(f *domain.File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.files[fileID]
	if !exists {
		return fmt.Errorf("%s: %w", fileID, domain.ErrFileNotFound)
	}
	if err := fn(f); err != nil {
		return err
	}
	f.UpdatedAt = s.now()
	return nil
}

// MarkSkipped implements pipeline.RecordStore.
func (s *Store) MarkSkipped(ctx context.Context, fileID, reason string) error {
	err := s.update(fileID, func(f *domain.File) error {
		f.Status = domain.StatusSkipped
		f.Error = reason
		return nil
	})
	if err != nil {
		return fmt.Errorf("MarkSkipped: %w", err)
	}
	return nil
}

// MarkProcessing implements pipeline.RecordStore.
func (s *Store) MarkProcessing(ctx context.Context, fileID string, startedAt time.Time) (int64, error) {
	var attempt int64
	err := s.update(fileID, func(f *domain.File) error {
		f.Attempt++
		f.Status = domain.StatusProcessing
		f.Error = ""
		started := startedAt
		f.ProcessingStartedAt = &started
		attempt = f.Attempt
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("MarkProcessing: %w", err)
	}
	return attempt, nil
}

// MarkFailed implements pipeline.RecordStore.
func (s *Store) MarkFailed(ctx context.Context, fileID string, attempt int64, reason string) error {
	err := s.update(fileID, func(f *domain.File) error {
		if f.Attempt != attempt {
			return fmt.Errorf("attempt %d superseded by %d: %w", attempt, f.Attempt, domain.ErrStaleAttempt)
		}
		f.Status = domain.StatusFailed
		f.Error = reason
		return nil
	})
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

// MarkCompleted implements pipeline.RecordStore.
func (s *Store) MarkCompleted(ctx context.Context, fileID string, attempt int64, txs []domain.Transaction) error {
	stored := domain.CloneTransactions(txs)
	if stored == nil {
		stored = []domain.Transaction{}
	}
	err := s.update(fileID, func(f *domain.File) error {
		if f.Attempt != attempt {
			return fmt.Errorf("attempt %d superseded by %d: %w", attempt, f.Attempt, domain.ErrStaleAttempt)
		}
		f.Status = domain.StatusCompleted
		f.Error = ""
		f.Transactions = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return nil
}

// Close implements records.Store.
func (s *Store) Close() error { return nil }

// Ensure Store implements records.Store interface.
var _ records.Store = (*Store)(nil)
