package httpapi

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/media/transcode"
	"github.com/Aiden-ho/twitter-server/internal/storage/blob"
)

// Static serves uploaded media: images and plain videos from local disk,
// HLS playlists and segments from the blob store.
type Static struct {
	imageDir string
	videoDir string
	store    blob.Store
	logger   zerolog.Logger
}

func NewStatic(imageDir, videoDir string, store blob.Store, logger zerolog.Logger) *Static {
	return &Static{
		imageDir: imageDir,
		videoDir: videoDir,
		store:    store,
		logger:   logger.With().Str("component", "static").Logger(),
	}
}

func (s *Static) ServeImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !safeName(name) {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	s.serveLocal(w, r, filepath.Join(s.imageDir, name))
}

// ServeVideo serves <id>.<ext> from the upload's own directory.
func (s *Static) ServeVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !safeName(name) {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	s.serveLocal(w, r, filepath.Join(s.videoDir, transcode.JobName(name), name))
}

func (s *Static) ServeMasterPlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !safeName(id) {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	s.serveBlob(w, r, path.Join(transcode.HLSKeyPrefix, id, transcode.MasterPlaylist))
}

func (s *Static) ServeSegment(w http.ResponseWriter, r *http.Request) {
	id, v, seg := chi.URLParam(r, "id"), chi.URLParam(r, "v"), chi.URLParam(r, "segment")
	if !safeName(id) || !safeName(v) || !safeName(seg) {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	s.serveBlob(w, r, path.Join(transcode.HLSKeyPrefix, id, v, seg))
}

// serveLocal uses http.ServeContent so Range requests work for video seeking.
func (s *Static) serveLocal(w http.ResponseWriter, r *http.Request, p string) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeErrorJSON(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error().Err(err).Str("path", p).Msg("open static file")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func (s *Static) serveBlob(w http.ResponseWriter, r *http.Request, key string) {
	rc, info, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeErrorJSON(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("fetch blob")
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" || ct == "application/octet-stream" {
		switch path.Ext(key) {
		case ".m3u8":
			ct = "application/vnd.apple.mpegurl"
		case ".ts":
			ct = "video/mp2t"
		}
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("client stopped reading blob")
	}
}

func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
