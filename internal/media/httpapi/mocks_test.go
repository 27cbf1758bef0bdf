package httpapi

import (
	"context"
	"mime/multipart"

	"github.com/stretchr/testify/mock"

	"github.com/Aiden-ho/twitter-server/internal/auth"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

type MediaServiceMock struct {
	mock.Mock
}

func (m *MediaServiceMock) UploadImages(ctx context.Context, files []*multipart.FileHeader) ([]models.Media, error) {
	args := m.Called(ctx, files)
	if v := args.Get(0); v != nil {
		return v.([]models.Media), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MediaServiceMock) UploadVideo(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error) {
	args := m.Called(ctx, fh)
	if v := args.Get(0); v != nil {
		return v.(*models.Media), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MediaServiceMock) UploadVideoHLS(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error) {
	args := m.Called(ctx, fh)
	if v := args.Get(0); v != nil {
		return v.(*models.Media), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MediaServiceMock) GetVideoStatus(ctx context.Context, name string) (*models.VideoStatus, error) {
	args := m.Called(ctx, name)
	if v := args.Get(0); v != nil {
		return v.(*models.VideoStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}
