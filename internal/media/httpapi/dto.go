package httpapi

import (
	"time"

	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

type UploadResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result"`
}

type VideoStatusResponse struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toVideoStatusResponse(s *models.VideoStatus) VideoStatusResponse {
	return VideoStatusResponse{
		Name:      s.Name,
		Status:    string(s.Status),
		Message:   s.Message,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
