package service

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Aiden-ho/twitter-server/internal/media/models"
)

const (
	MaxImages       = 4
	MaxImageSize    = 300 << 10
	MaxVideoSize    = 50 << 20
	jpegQuality     = 85
	defaultVideoExt = "mp4"
)

// TranscodeQueue admits uploaded videos for HLS encoding and reports
// their progress.
type TranscodeQueue interface {
	Enqueue(ctx context.Context, sourcePath string) error
	Status(ctx context.Context, name string) (*models.VideoStatus, error)
}

type Config struct {
	Queue    TranscodeQueue
	ImageDir string
	VideoDir string
	// Host prefixes every returned URL, e.g. http://localhost:4000.
	Host   string
	Logger zerolog.Logger
}

type Service struct {
	queue    TranscodeQueue
	imageDir string
	videoDir string
	host     string
	logger   zerolog.Logger
	idGen    func() string
}

func New(cfg Config) (*Service, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("transcode queue is required")
	}
	if cfg.ImageDir == "" || cfg.VideoDir == "" {
		return nil, fmt.Errorf("image and video dirs are required")
	}
	return &Service{
		queue:    cfg.Queue,
		imageDir: cfg.ImageDir,
		videoDir: cfg.VideoDir,
		host:     strings.TrimSuffix(cfg.Host, "/"),
		logger:   cfg.Logger.With().Str("component", "media_service").Logger(),
		idGen:    uuid.NewString,
	}, nil
}

// UploadImages converts every image to JPEG and returns their static URLs.
func (s *Service) UploadImages(ctx context.Context, files []*multipart.FileHeader) ([]models.Media, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: file is empty", models.ErrInvalidArgument)
	}
	if len(files) > MaxImages {
		return nil, fmt.Errorf("%w: at most %d images", models.ErrInvalidArgument, MaxImages)
	}
	for _, fh := range files {
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			return nil, fmt.Errorf("%w: file type is invalid", models.ErrInvalidArgument)
		}
		if fh.Size > MaxImageSize {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrTooLarge, MaxImageSize)
		}
	}

	// all or nothing: a rejected file removes the ones already converted
	var written []string
	removeWritten := func() {
		for _, p := range written {
			_ = os.Remove(p)
		}
	}

	result := make([]models.Media, 0, len(files))
	for _, fh := range files {
		if err := ctx.Err(); err != nil {
			removeWritten()
			return nil, err
		}
		name := s.idGen()
		dst := filepath.Join(s.imageDir, name+".jpg")
		if err := s.convertImage(fh, dst); err != nil {
			removeWritten()
			return nil, err
		}
		written = append(written, dst)
		result = append(result, models.Media{
			URL:  fmt.Sprintf("%s/static/image/%s.jpg", s.host, name),
			Type: models.Image,
		})
	}
	return result, nil
}

func (s *Service) convertImage(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", models.ErrInvalidArgument, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Close()
}

// UploadVideo stores the video for direct playback.
func (s *Service) UploadVideo(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error) {
	id, ext, _, err := s.storeVideo(ctx, fh)
	if err != nil {
		return nil, err
	}
	return &models.Media{
		URL:  fmt.Sprintf("%s/static/video/%s.%s", s.host, id, ext),
		Type: models.Video,
	}, nil
}

// UploadVideoHLS stores the video and admits it to the transcode queue.
// The returned manifest URL resolves once the job has Succeeded.
func (s *Service) UploadVideoHLS(ctx context.Context, fh *multipart.FileHeader) (*models.Media, error) {
	id, _, path, err := s.storeVideo(ctx, fh)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, path); err != nil {
		_ = os.RemoveAll(filepath.Dir(path))
		return nil, fmt.Errorf("enqueue %s: %w", id, err)
	}
	return &models.Media{
		URL:  fmt.Sprintf("%s/static/video-hls/%s/master.m3u8", s.host, id),
		Type: models.VideoHLS,
	}, nil
}

func (s *Service) GetVideoStatus(ctx context.Context, name string) (*models.VideoStatus, error) {
	if name == "" {
		return nil, models.ErrInvalidArgument
	}
	return s.queue.Status(ctx, name)
}

// storeVideo writes the upload to <videoDir>/<id>/<id>.<ext>.
func (s *Service) storeVideo(ctx context.Context, fh *multipart.FileHeader) (id, ext, path string, err error) {
	if fh == nil {
		return "", "", "", fmt.Errorf("%w: file is empty", models.ErrInvalidArgument)
	}
	ct := fh.Header.Get("Content-Type")
	if !strings.Contains(ct, "mp4") && !strings.Contains(ct, "quicktime") {
		return "", "", "", fmt.Errorf("%w: file type is invalid", models.ErrInvalidArgument)
	}
	if fh.Size > MaxVideoSize {
		return "", "", "", fmt.Errorf("%w: video exceeds %d bytes", models.ErrTooLarge, MaxVideoSize)
	}
	if err := ctx.Err(); err != nil {
		return "", "", "", err
	}

	id = s.idGen()
	ext = extension(fh.Filename)
	dir := filepath.Join(s.videoDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create video dir: %w", err)
	}
	path = filepath.Join(dir, id+"."+ext)

	if err := copyUpload(fh, path); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", "", err
	}
	s.logger.Debug().Str("id", id).Int64("size", fh.Size).Msg("video stored")
	return id, ext, path, nil
}

func copyUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write video: %w", err)
	}
	return out.Close()
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return defaultVideoExt
	}
	ext := strings.ToLower(filename[i+1:])
	if strings.ContainsAny(ext, `/\`) {
		return defaultVideoExt
	}
	return ext
}
