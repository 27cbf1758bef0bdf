package transcode

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Aiden-ho/twitter-server/internal/storage/blob"
)

// HLSKeyPrefix is prepended to every published artifact key.
const HLSKeyPrefix = "videos-hls"

// Publisher uploads the artifacts of a finished encode.
type Publisher interface {
	Publish(ctx context.Context, dir, sourcePath string) (int, error)
}

type PublisherConfig struct {
	Store blob.Store
	// Root is the directory keys are made relative to, normally the video
	// upload dir, so <Root>/<id>/master.m3u8 becomes videos-hls/<id>/master.m3u8.
	Root        string
	Concurrency int
	Logger      zerolog.Logger
}

type ArtifactPublisher struct {
	store       blob.Store
	root        string
	concurrency int
	logger      zerolog.Logger
}

func NewArtifactPublisher(cfg PublisherConfig) (*ArtifactPublisher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	return &ArtifactPublisher{
		store:       cfg.Store,
		root:        root,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.With().Str("component", "artifact_publisher").Logger(),
	}, nil
}

// Publish uploads every file under dir except sourcePath and returns the
// number uploaded. It waits for the whole batch; the first failure cancels
// the uploads still pending and is returned.
func (p *ArtifactPublisher) Publish(ctx context.Context, dir, sourcePath string) (int, error) {
	files, err := listArtifacts(dir, sourcePath)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, file := range files {
		g.Go(func() error {
			return p.upload(gctx, file)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	p.logger.Debug().Str("dir", dir).Int("count", len(files)).Msg("artifacts published")
	return len(files), nil
}

func (p *ArtifactPublisher) upload(ctx context.Context, file string) error {
	key, err := p.key(file)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	if _, err := p.store.Put(ctx, key, f, st.Size(), contentType(file)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (p *ArtifactPublisher) key(file string) (string, error) {
	rel, err := filepath.Rel(p.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("artifact %s is outside %s", file, p.root)
	}
	return path.Join(HLSKeyPrefix, filepath.ToSlash(rel)), nil
}

// listArtifacts returns the absolute paths of all regular files under dir,
// leaving out the raw upload.
func listArtifacts(dir, sourcePath string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir: %w", err)
	}
	skip := ""
	if sourcePath != "" {
		if skip, err = filepath.Abs(sourcePath); err != nil {
			return nil, fmt.Errorf("resolve source: %w", err)
		}
	}

	var files []string
	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || p == skip {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

func contentType(file string) string {
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
