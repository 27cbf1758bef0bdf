package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	data  map[string]*models.VideoStatus
	clock func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data:  make(map[string]*models.VideoStatus),
		clock: time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.VideoStatus) error {
	if s == nil || s.Name == "" || !s.Status.Valid() {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[s.Name]; exists {
		return models.ErrConflict
	}

	cp := *s
	now := r.clock()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	r.data[s.Name] = &cp

	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, name string, status domain.Status, message string) error {
	if name == "" || !status.Valid() {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.data[name]
	if !ok {
		return nil
	}
	if err := domain.ValidateTransition(cur.Status, status); err != nil {
		return err
	}

	cur.Status = status
	cur.Message = message
	cur.UpdatedAt = r.clock()

	return nil
}

func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*models.VideoStatus, error) {
	if name == "" {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.data[name]
	if !ok {
		return nil, models.ErrNotFound
	}

	// copy so callers cannot mutate the stored record
	cp := *s
	return &cp, nil
}
