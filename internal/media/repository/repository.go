package repository

import (
	"context"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

// StatusRepository is the durable store of transcode job records.
//
// Create rejects an existing name with models.ErrConflict. UpdateStatus is a
// silent no-op for unknown names and returns domain.ErrInvalidTransition for
// a backwards move. GetByName returns models.ErrNotFound for unknown names.
type StatusRepository interface {
	Create(ctx context.Context, s *models.VideoStatus) error
	UpdateStatus(ctx context.Context, name string, status domain.Status, message string) error
	GetByName(ctx context.Context, name string) (*models.VideoStatus, error)
}
