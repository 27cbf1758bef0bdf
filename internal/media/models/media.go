package models

import (
	"time"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
)

type MediaType string

const (
	Image    MediaType = "image"
	Video    MediaType = "video"
	VideoHLS MediaType = "hls"
)

// Media is the public handle of an uploaded file.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// VideoStatus is the persisted lifecycle record of one transcode job.
type VideoStatus struct {
	Name      string        `db:"name"`
	Status    domain.Status `db:"status"`
	Message   string        `db:"message"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}
