package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/auth"
)

// RequireAuth verifies the bearer access token and requires a verified
// user. The claims are stored in the request context.
func RequireAuth(v auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeErrorJSON(w, http.StatusUnauthorized, "access token is required")
				return
			}

			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				msg := "access token is invalid"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "access token is expired"
				}
				writeErrorJSON(w, http.StatusUnauthorized, msg)
				return
			}
			if claims.Verify != auth.Verified {
				writeErrorJSON(w, http.StatusForbidden, auth.ErrNotVerified.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequestLogger logs one line per request with status and latency.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// UploadRateLimit caps uploads per client IP.
func UploadRateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeErrorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}
