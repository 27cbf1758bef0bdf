package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

type QueueMock struct {
	mock.Mock
}

func (m *QueueMock) Enqueue(ctx context.Context, sourcePath string) error {
	args := m.Called(ctx, sourcePath)
	return args.Error(0)
}

func (m *QueueMock) Status(ctx context.Context, name string) (*models.VideoStatus, error) {
	args := m.Called(ctx, name)
	if v := args.Get(0); v != nil {
		return v.(*models.VideoStatus), args.Error(1)
	}
	return nil, args.Error(1)
}
