package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/simdev/internal/monitoring"
	"github.com/gin-gonic/gin"
)

// Key hashes the full request URI, query string included
func Key(requestURI string) string {
	sum := sha256.Sum256([]byte(requestURI))
	return hex.EncodeToString(sum[:])
}

// Middleware caches successful GET responses under pathPrefix, keyed by
// the request URI.
func Middleware(store Store, pathPrefix string, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet || !strings.HasPrefix(ctx.Request.URL.Path, pathPrefix) {
			ctx.Next()
			return
		}

		key := Key(ctx.Request.URL.RequestURI())

		cachedData, found, err := store.Get(ctx.Request.Context(), key)
		if err != nil {
			slog.Warn("Cache lookup failed", "error", err)
		}
		if found {
			if metrics != nil {
				metrics.IncrementCacheHit()
			}
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cachedData)
			ctx.Abort()
			return
		}

		if metrics != nil {
			metrics.IncrementCacheMiss()
		}
		ctx.Header("X-Cache", "MISS")

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		// errors are rendered later by the error handler, so an unwritten
		// response still reports the default 200
		if wrapper.Written() && wrapper.Status() == http.StatusOK && len(ctx.Errors) == 0 {
			if err := store.Set(ctx.Request.Context(), key, wrapper.body.Bytes()); err != nil {
				slog.Warn("Cache store failed", "error", err)
			}
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
