package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/auth"
)

type RouterConfig struct {
	Handler  *Handler
	Static   *Static
	Verifier auth.TokenVerifier
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  zerolog.Logger
	// UploadsPerMinute limits upload requests per IP; 0 disables it.
	UploadsPerMinute int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/health", cfg.Handler.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/medias", func(r chi.Router) {
		r.Use(RequireAuth(cfg.Verifier))

		r.Group(func(r chi.Router) {
			if cfg.UploadsPerMinute > 0 {
				r.Use(UploadRateLimit(cfg.UploadsPerMinute, time.Minute))
			}
			r.Post("/upload-images", cfg.Handler.UploadImages)
			r.Post("/upload-video", cfg.Handler.UploadVideo)
			r.Post("/upload-video-hls", cfg.Handler.UploadVideoHLS)
		})
		r.Get("/video-status/{id}", cfg.Handler.GetVideoStatus)
	})

	r.Route("/static", func(r chi.Router) {
		r.Get("/image/{name}", cfg.Static.ServeImage)
		r.Get("/video/{name}", cfg.Static.ServeVideo)
		r.Get("/video-streaming/{name}", cfg.Static.ServeVideo)
		r.Get("/video-hls/{id}/master.m3u8", cfg.Static.ServeMasterPlaylist)
		r.Get("/video-hls/{id}/{v}/{segment}", cfg.Static.ServeSegment)
	})

	return r
}
