package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/media/models"
	"github.com/Aiden-ho/twitter-server/internal/media/service"
	"github.com/Aiden-ho/twitter-server/internal/media/transcode"
)

const (
	msgUploadImagesSuccessful = "Upload images successful"
	msgUploadVideoSuccessful  = "Upload video successful"
	msgGetVideoStatusSuccess  = "Get video status successful"

	// multipart framing on top of the file limits
	formOverhead = 1 << 20
)

// MediaService is the part of service.Service the handlers use.
type MediaService interface {
	UploadImages(ctx context.Context, files []*multipart.FileHeader) ([]models.Media, error)
	UploadVideo(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error)
	UploadVideoHLS(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error)
	GetVideoStatus(ctx context.Context, name string) (*models.VideoStatus, error)
}

var _ MediaService = (*service.Service)(nil)

type Handler struct {
	svc    MediaService
	logger zerolog.Logger
}

func New(svc MediaService, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "httpapi").Logger()}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	files, ok := h.parseFiles(w, r, "image", service.MaxImages*service.MaxImageSize)
	if !ok {
		return
	}

	result, err := h.svc.UploadImages(r.Context(), files)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Message: msgUploadImagesSuccessful, Result: result})
}

func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	h.uploadVideo(w, r, h.svc.UploadVideo)
}

func (h *Handler) UploadVideoHLS(w http.ResponseWriter, r *http.Request) {
	h.uploadVideo(w, r, h.svc.UploadVideoHLS)
}

func (h *Handler) uploadVideo(w http.ResponseWriter, r *http.Request, upload func(context.Context, *multipart.FileHeader) (*models.Media, error)) {
	files, ok := h.parseFiles(w, r, "video", service.MaxVideoSize)
	if !ok {
		return
	}
	if len(files) != 1 {
		writeErrorJSON(w, http.StatusBadRequest, "exactly one video is required")
		return
	}

	m, err := upload(r.Context(), files[0])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Message: msgUploadVideoSuccessful, Result: []models.Media{*m}})
}

func (h *Handler) GetVideoStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetVideoStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Message: msgGetVideoStatusSuccess, Result: toVideoStatusResponse(s)})
}

// parseFiles reads the multipart body, bounded by limit plus framing, and
// returns the files of field. It writes the error response itself.
func (h *Handler) parseFiles(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "file is too large")
			return nil, false
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "file is empty")
		return nil, false
	}
	return files, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTooLarge):
		writeErrorJSON(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict")
	case errors.Is(err, transcode.ErrQueueClosed):
		writeErrorJSON(w, http.StatusServiceUnavailable, "service is shutting down")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
